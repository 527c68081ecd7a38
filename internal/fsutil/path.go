package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeJoin joins rel onto base and fails if the result would leave base.
func SafeJoin(base, rel string) (string, error) {
	target := filepath.Join(base, filepath.Clean(rel))
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	relToBase, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", err
	}
	if relToBase == ".." || strings.HasPrefix(relToBase, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes base directory", rel)
	}
	return target, nil
}
