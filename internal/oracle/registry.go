package oracle

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"

	"github.com/codalotl/sampleverify/internal/container"
	"github.com/codalotl/sampleverify/internal/types"
	"github.com/codalotl/sampleverify/internal/verify"
)

// EnvVarLanguages points at a languages.yml that replaces the built-in one.
const EnvVarLanguages = "SAMPLEVERIFY_LANGUAGES"

// DefaultWorkDir is used when a definition does not set workdir.
const DefaultWorkDir = "/work"

// ErrUnsupportedLanguage is wrapped by Resolve and Lookup when no definition matches.
var ErrUnsupportedLanguage = errors.New("unsupported language")

//go:embed languages.yml
var defaultLanguages []byte

// Step conditions.
const (
	IfClientDist     = "client-dist"
	IfNoClientDist   = "no-client-dist"
	IfExcludePackage = "exclude-package"
)

type Step struct {
	Run string           `yaml:"run" validate:"required"`
	If  types.StringList `yaml:"if" validate:"dive,oneof=client-dist no-client-dist exclude-package"`
}

// Definition describes how to type-check one language inside a container.
type Definition struct {
	Name    string            `yaml:"name" validate:"required,lowercase,alphanum"`
	Aliases types.StringList  `yaml:"aliases" validate:"dive,required"`
	Image   string            `yaml:"image" validate:"required"`
	File    string            `yaml:"file" validate:"required,excludesall=/"`
	WorkDir string            `yaml:"workdir" validate:"omitempty,startswith=/"`
	Env     map[string]string `yaml:"env"`
	Setup   []Step            `yaml:"setup" validate:"dive"`
	Check   string            `yaml:"check" validate:"required"`
	Timeout string            `yaml:"timeout"`

	timeout time.Duration
}

// ExecTimeout is the per-command timeout. Zero means container.DefaultExecTimeout.
func (d Definition) ExecTimeout() time.Duration {
	return d.timeout
}

func (d Definition) workDir() string {
	if strings.TrimSpace(d.WorkDir) == "" {
		return DefaultWorkDir
	}
	return d.WorkDir
}

// Applies reports whether the step runs for req.
func (s Step) Applies(req types.TypeCheckRequest) bool {
	for _, cond := range s.If {
		switch cond {
		case IfClientDist:
			if strings.TrimSpace(req.ClientDistPath) == "" {
				return false
			}
		case IfNoClientDist:
			if strings.TrimSpace(req.ClientDistPath) != "" {
				return false
			}
		case IfExcludePackage:
			if strings.TrimSpace(req.PackageNameToExclude) == "" {
				return false
			}
		}
	}
	return true
}

type registryFile struct {
	Languages []Definition `yaml:"languages"`
}

// Registry maps language names and aliases to oracle definitions. Provider and Logger are
// handed to the oracles Resolve returns.
type Registry struct {
	Provider container.Provider
	Logger   *slog.Logger

	defs    map[string]Definition
	aliases map[string]string
}

// DefaultRegistry returns the built-in language table.
func DefaultRegistry() (*Registry, error) {
	return parseRegistry(defaultLanguages, "built-in languages.yml")
}

// LoadRegistry reads a languages.yml. An empty path means the built-in table.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRegistry(b, path)
}

func parseRegistry(data []byte, source string) (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if len(rf.Languages) == 0 {
		return nil, fmt.Errorf("%s defines no languages", source)
	}
	reg := &Registry{
		defs:    map[string]Definition{},
		aliases: map[string]string{},
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	for i := range rf.Languages {
		def := rf.Languages[i]
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("%s: language %q: %w", source, def.Name, err)
		}
		if err := checkCommands(def); err != nil {
			return nil, fmt.Errorf("%s: language %q: %w", source, def.Name, err)
		}
		if strings.TrimSpace(def.Timeout) != "" {
			d, err := time.ParseDuration(def.Timeout)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("%s: language %q: invalid timeout %q", source, def.Name, def.Timeout)
			}
			def.timeout = d
		}
		if err := reg.add(def); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}
	return reg, nil
}

func checkCommands(def Definition) error {
	for k := range def.Env {
		if strings.TrimSpace(k) == "" || strings.Contains(k, "=") {
			return fmt.Errorf("invalid env name %q", k)
		}
	}
	if _, err := splitCommand(def.Check); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	for i, s := range def.Setup {
		if _, err := splitCommand(s.Run); err != nil {
			return fmt.Errorf("setup step %d: %w", i+1, err)
		}
	}
	return nil
}

// splitCommand parses cmd into argv without expanding variables.
func splitCommand(cmd string) ([]string, error) {
	args, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("command is empty")
	}
	return args, nil
}

func (r *Registry) add(def Definition) error {
	key := normalize(def.Name)
	if _, ok := r.lookupKey(key); ok {
		return fmt.Errorf("language %q defined twice", def.Name)
	}
	r.defs[key] = def
	for _, alias := range def.Aliases {
		a := normalize(alias)
		if _, ok := r.lookupKey(a); ok {
			return fmt.Errorf("alias %q of language %q is already taken", alias, def.Name)
		}
		r.aliases[a] = key
	}
	return nil
}

func (r *Registry) lookupKey(key string) (Definition, bool) {
	if def, ok := r.defs[key]; ok {
		return def, true
	}
	if target, ok := r.aliases[key]; ok {
		return r.defs[target], true
	}
	return Definition{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup returns the definition for a language name or alias, case-insensitively.
func (r *Registry) Lookup(language string) (Definition, error) {
	if def, ok := r.lookupKey(normalize(language)); ok {
		return def, nil
	}
	return Definition{}, fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedLanguage, language, strings.Join(r.Languages(), ", "))
}

// Resolve returns a container-backed oracle for language.
func (r *Registry) Resolve(language string) (verify.Oracle, error) {
	def, err := r.Lookup(language)
	if err != nil {
		return nil, err
	}
	if r.Provider == nil {
		return nil, fmt.Errorf("resolve %s: %w", def.Name, verify.ErrNoProvider)
	}
	return NewContainerOracle(def, r.Provider, r.Logger), nil
}

// Languages returns the canonical language names, sorted.
func (r *Registry) Languages() []string {
	names := make([]string, 0, len(r.defs))
	for _, def := range r.defs {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every definition ordered by name.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, name := range r.Languages() {
		out = append(out, r.defs[normalize(name)])
	}
	return out
}

// Images returns the distinct images used by the given languages (all when none are given).
func (r *Registry) Images(languages ...string) ([]string, error) {
	defs := r.Definitions()
	if len(languages) > 0 {
		defs = defs[:0:0]
		for _, l := range languages {
			def, err := r.Lookup(l)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		}
	}
	seen := map[string]bool{}
	var images []string
	for _, def := range defs {
		if seen[def.Image] {
			continue
		}
		seen[def.Image] = true
		images = append(images, def.Image)
	}
	sort.Strings(images)
	return images, nil
}
