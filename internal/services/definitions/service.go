// Package definitions loads analysis and chat prompt definitions from YAML
// files. Each definition names the model, generation settings, prompt
// template, and (optionally) a JSON schema for structured output, so prompt
// tuning never requires a rebuild.
package definitions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/auspex/internal/common"
)

// Definition is one named prompt definition loaded from YAML.
type Definition struct {
	Name          string                 `yaml:"name"`
	Description   string                 `yaml:"description"`
	Model         string                 `yaml:"model"`
	Temperature   float32                `yaml:"temperature"`
	MaxTokens     int                    `yaml:"max_tokens"`
	ThinkingLevel string                 `yaml:"thinking_level"`
	System        string                 `yaml:"system"`
	Prompt        string                 `yaml:"prompt"`
	OutputSchema  map[string]interface{} `yaml:"output_schema"`
}

// Service loads and serves prompt definitions.
type Service struct {
	mu          sync.RWMutex
	dir         string
	definitions map[string]*Definition
	logger      arbor.ILogger
}

// NewService creates a definitions service and loads every *.yaml file found
// in the configured directory. Missing directories are not an error so the
// binary can run on built-in definitions alone.
func NewService(cfg *common.DefinitionsConfig, logger arbor.ILogger) (*Service, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	s := &Service{
		definitions: builtinDefinitions(),
		logger:      logger,
	}

	dir := findDefinitionsDir(cfg.Dir)
	if dir == "" {
		logger.Warn().Str("dir", cfg.Dir).Msg("Definitions directory not found, using built-in definitions")
		return s, nil
	}
	s.dir = dir

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every YAML file from the definitions directory. Files
// override built-in definitions with the same name.
func (s *Service) Reload() error {
	if s.dir == "" {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to scan definitions directory: %w", err)
	}
	ymlMatches, _ := filepath.Glob(filepath.Join(s.dir, "*.yml"))
	matches = append(matches, ymlMatches...)
	sort.Strings(matches)

	loaded := builtinDefinitions()
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read definition file %s: %w", path, err)
		}

		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("failed to parse definition file %s: %w", path, err)
		}

		if def.Name == "" {
			def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if def.Prompt == "" {
			return fmt.Errorf("definition %s has no prompt", def.Name)
		}

		loaded[def.Name] = &def
		s.logger.Debug().
			Str("name", def.Name).
			Str("model", def.Model).
			Str("file", filepath.Base(path)).
			Msg("Loaded prompt definition")
	}

	s.mu.Lock()
	s.definitions = loaded
	s.mu.Unlock()

	s.logger.Info().Int("count", len(loaded)).Str("dir", s.dir).Msg("Prompt definitions loaded")
	return nil
}

// Get returns the definition with the given name.
func (s *Service) Get(name string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[name]
	if !ok {
		return nil, fmt.Errorf("prompt definition not found: %s", name)
	}
	return def, nil
}

// Names returns the sorted names of all loaded definitions.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.definitions))
	for name := range s.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes {{key}} placeholders in the definition's prompt with the
// supplied values and returns the rendered prompt text. Unknown placeholders
// are left in place so missing inputs are visible in audit logs.
func (d *Definition) Render(vars map[string]string) string {
	prompt := d.Prompt
	for key, value := range vars {
		prompt = strings.ReplaceAll(prompt, "{{"+key+"}}", value)
	}
	return prompt
}

// findDefinitionsDir resolves the definitions directory, checking the
// configured path first and then conventional locations relative to the
// working directory and the executable.
func findDefinitionsDir(configured string) string {
	candidates := []string{}
	if configured != "" {
		candidates = append(candidates, configured)
	}
	candidates = append(candidates, "definitions", filepath.Join("..", "definitions"))

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "definitions"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
