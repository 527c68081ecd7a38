// Package manifest reads batch files listing the samples to verify.
//
//	client-dist: ./dist
//	exclude-package: azure-messaging-servicebus
//	samples:
//	  - language: python
//	    files: samples/python/*.py
//	  - language: typescript
//	    files: [samples/ts/send.ts, samples/ts/receive.ts]
//	    client-dist: ./dist-ts
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codalotl/sampleverify/internal/fsutil"
	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/workspace"
)

type Manifest struct {
	ClientDist     string  `yaml:"client-dist"`
	ExcludePackage string  `yaml:"exclude-package"`
	Groups         []Group `yaml:"samples"`
}

// Group is a set of sample files in one language. ClientDist and ExcludePackage override the
// manifest-level values.
type Group struct {
	Language       string           `yaml:"language"`
	Files          types.StringList `yaml:"files"`
	ClientDist     string           `yaml:"client-dist"`
	ExcludePackage string           `yaml:"exclude-package"`
}

// Job is one sample to verify, with paths resolved. Name is the path relative to the manifest
// directory; it is unique per language within one manifest.
type Job struct {
	Path                 string
	Name                 string
	Language             string
	ClientDistPath       string
	PackageNameToExclude string
}

func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and that referenced paths exist under dir.
func Validate(m *Manifest, dir string) error {
	if m == nil {
		return errors.New("manifest is empty")
	}
	if len(m.Groups) == 0 {
		return errors.New("samples is required")
	}
	if err := validateDist(m.ClientDist, dir); err != nil {
		return err
	}
	for i, g := range m.Groups {
		if strings.TrimSpace(g.Language) == "" {
			return fmt.Errorf("samples[%d].language is required", i)
		}
		if len(g.Files) == 0 {
			return fmt.Errorf("samples[%d].files is required", i)
		}
		for _, f := range g.Files {
			if strings.TrimSpace(f) == "" {
				return fmt.Errorf("samples[%d].files entries cannot be empty", i)
			}
		}
		if err := validateDist(g.ClientDist, dir); err != nil {
			return fmt.Errorf("samples[%d]: %w", i, err)
		}
	}
	_, err := m.Jobs(dir)
	return err
}

func validateDist(dist, dir string) error {
	if strings.TrimSpace(dist) == "" {
		return nil
	}
	p, err := resolve(dir, dist)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("client-dist does not exist: %s", dist)
	}
	return nil
}

func resolve(dir, p string) (string, error) {
	clean, err := workspace.CleanRelative(strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Join(dir, clean), nil
}

// Jobs expands every group's file patterns relative to dir. Patterns must stay inside dir and
// match at least one file. The result is sorted by path, then language.
func (m Manifest) Jobs(dir string) ([]Job, error) {
	seen := map[string]bool{}
	names := map[string]string{}
	var jobs []Job
	for i, g := range m.Groups {
		dist := firstNonEmpty(g.ClientDist, m.ClientDist)
		if dist != "" {
			p, err := resolve(dir, dist)
			if err != nil {
				return nil, fmt.Errorf("samples[%d].client-dist: %w", i, err)
			}
			dist = p
		}
		exclude := firstNonEmpty(g.ExcludePackage, m.ExcludePackage)
		language := strings.TrimSpace(g.Language)
		for _, pattern := range g.Files {
			full, err := fsutil.SafeJoin(dir, strings.TrimSpace(pattern))
			if err != nil {
				return nil, fmt.Errorf("samples[%d]: %w", i, err)
			}
			matches, err := filepath.Glob(full)
			if err != nil {
				return nil, fmt.Errorf("samples[%d]: bad pattern %q: %w", i, pattern, err)
			}
			var files []string
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil || info.IsDir() {
					continue
				}
				files = append(files, match)
			}
			if len(files) == 0 {
				return nil, fmt.Errorf("samples[%d]: %q matched no files", i, pattern)
			}
			for _, f := range files {
				key := language + "\x00" + f
				if seen[key] {
					continue
				}
				seen[key] = true
				rel, err := filepath.Rel(dir, f)
				if err != nil {
					return nil, fmt.Errorf("samples[%d]: %w", i, err)
				}
				rel = filepath.ToSlash(rel)
				flat, err := workspace.SampleFileName(rel, "")
				if err != nil {
					return nil, fmt.Errorf("samples[%d]: %w", i, err)
				}
				nameKey := language + "\x00" + strings.ToLower(flat)
				if other, ok := names[nameKey]; ok {
					return nil, fmt.Errorf("samples[%d]: %q and %q both map to sample name %q", i, other, rel, flat)
				}
				names[nameKey] = rel
				jobs = append(jobs, Job{
					Path:                 f,
					Name:                 rel,
					Language:             language,
					ClientDistPath:       dist,
					PackageNameToExclude: exclude,
				})
			}
		}
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].Path != jobs[b].Path {
			return jobs[a].Path < jobs[b].Path
		}
		return jobs[a].Language < jobs[b].Language
	})
	return jobs, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
