package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvVarResults overrides the directory verification records are written to.
const EnvVarResults = "SAMPLEVERIFY_RESULTS"

// ResultsDir returns the directory verification records live in. A relative override is
// resolved against rootPath.
func ResultsDir(rootPath string) string {
	if env := strings.TrimSpace(os.Getenv(EnvVarResults)); env != "" {
		if filepath.IsAbs(env) {
			return filepath.Clean(env)
		}
		return filepath.Join(rootPath, filepath.Clean(env))
	}
	return filepath.Join(rootPath, "results")
}

// SampleFileName flattens name into a single path element and ensures it carries ext.
func SampleFileName(name, ext string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("sample file name is required")
	}
	flat := strings.NewReplacer("/", "_", "\\", "_").Replace(trimmed)
	if flat == "." || flat == ".." {
		return "", errors.New("sample file name is invalid")
	}
	if ext == "" {
		return flat, nil
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.EqualFold(filepath.Ext(flat), ext) {
		return flat, nil
	}
	return strings.TrimSuffix(flat, filepath.Ext(flat)) + ext, nil
}

// CleanRelative ensures a manifest-relative path is safe and normalized.
func CleanRelative(name string) (string, error) {
	if name == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	clean := filepath.Clean(name)
	if clean == "." {
		return "", errors.New("path cannot be the current directory")
	}
	return clean, nil
}

// EnsureDir makes sure dir exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
