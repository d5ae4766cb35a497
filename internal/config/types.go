package config

import (
	"encoding/json"
	"fmt"
	"time"

	"autograder/internal/api"
	"autograder/internal/rubric"

	"gopkg.in/yaml.v3"
)

// ServiceConfig is the top-level autograder.yaml structure.
type ServiceConfig struct {
	Server  ServerConfig   `yaml:"server"`
	Rubrics RubricsConfig  `yaml:"rubrics"`
	Sandbox SandboxConfig  `yaml:"sandbox"`
	Export  ExportConfig   `yaml:"export"`
	Logging LoggingConfig  `yaml:"logging"`
	Pools   []PoolSettings `yaml:"pools"`
}

// ServerConfig holds the HTTP bind parameters for serve mode.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RubricsConfig points at the directory of rubric documents and controls
// whether changes to it are picked up while serving.
type RubricsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// SandboxConfig holds fleet-wide container parameters applied to every
// pool unless overridden per pool.
type SandboxConfig struct {
	Runtime   string `yaml:"runtime"`
	Memory    string `yaml:"memory"`
	CPUs      string `yaml:"cpus"`
	PidsLimit int    `yaml:"pids_limit"`
}

// ExportConfig controls the result export sink.
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig holds the log level for the process.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration decodes yaml durations in the "30s" / "5m" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PoolSettings is the yaml shape of one per-language sandbox pool.
type PoolSettings struct {
	Language    api.Language `yaml:"language"`
	Image       string       `yaml:"image"`
	MinIdle     int          `yaml:"min_idle"`
	MaxTotal    int          `yaml:"max_total"`
	IdleTTL     Duration     `yaml:"idle_ttl"`
	RunningTTL  Duration     `yaml:"running_ttl"`
	AcquireWait Duration     `yaml:"acquire_wait"`
	Runtime     string       `yaml:"runtime"`
	Memory      string       `yaml:"memory"`
	CPUs        string       `yaml:"cpus"`
	PidsLimit   int          `yaml:"pids_limit"`
}

// SetupCommand is one preflight command. It accepts both the object form
// {name, command} and a bare command string, in YAML and JSON alike.
type SetupCommand struct {
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
}

func (c *SetupCommand) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Command = value.Value
		c.Name = value.Value
		return nil
	}

	type plain SetupCommand
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.Command == "" {
		return fmt.Errorf("setup command requires a command")
	}
	if p.Name == "" {
		p.Name = p.Command
	}
	*c = SetupCommand(p)
	return nil
}

func (c *SetupCommand) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Command = s
		c.Name = s
		return nil
	}

	type plain SetupCommand
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Command == "" {
		return fmt.Errorf("setup command requires a command")
	}
	if p.Name == "" {
		p.Name = p.Command
	}
	*c = SetupCommand(p)
	return nil
}

// SetupBlock is the per-language preflight configuration.
type SetupBlock struct {
	RequiredFiles []string       `yaml:"required_files" json:"required_files"`
	SetupCommands []SetupCommand `yaml:"setup_commands" json:"setup_commands"`
}

// SetupConfig maps language tags to setup blocks. The flat form
// {required_files, setup_commands} is also accepted and applies to every
// language.
type SetupConfig struct {
	PerLanguage map[api.Language]SetupBlock
	Flat        *SetupBlock
}

// ForLanguage resolves the block that applies to a submission language.
// Returns nil when no block applies.
func (s *SetupConfig) ForLanguage(language api.Language) *SetupBlock {
	if s == nil {
		return nil
	}
	if s.Flat != nil {
		return s.Flat
	}
	if block, ok := s.PerLanguage[language]; ok {
		return &block
	}
	return nil
}

// setupConfigIsFlat reports whether any of the mapping keys are the flat
// form's field names rather than language tags.
func setupConfigIsFlat(keys []string) bool {
	for _, k := range keys {
		if k == "required_files" || k == "setup_commands" {
			return true
		}
	}
	return false
}

func (s *SetupConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("setup config must be a mapping")
	}

	var keys []string
	for i := 0; i < len(value.Content); i += 2 {
		keys = append(keys, value.Content[i].Value)
	}

	if setupConfigIsFlat(keys) {
		var block SetupBlock
		if err := value.Decode(&block); err != nil {
			return err
		}
		s.Flat = &block
		return nil
	}

	perLanguage := make(map[api.Language]SetupBlock)
	if err := value.Decode(&perLanguage); err != nil {
		return err
	}
	s.PerLanguage = perLanguage
	return nil
}

func (s *SetupConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("setup config must be an object: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}

	if setupConfigIsFlat(keys) {
		var block SetupBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return err
		}
		s.Flat = &block
		return nil
	}

	perLanguage := make(map[api.Language]SetupBlock)
	if err := json.Unmarshal(data, &perLanguage); err != nil {
		return err
	}
	s.PerLanguage = perLanguage
	return nil
}

// FeedbackOptions controls the structured feedback renderer.
type FeedbackOptions struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	Mode             string `yaml:"mode" json:"mode"`
	ShowScore        bool   `yaml:"show_score" json:"show_score"`
	ShowPassedTests  bool   `yaml:"show_passed_tests" json:"show_passed_tests"`
	AddReportSummary bool   `yaml:"add_report_summary" json:"add_report_summary"`
	CategoryHeaders  bool   `yaml:"category_headers" json:"category_headers"`
	ReportTitle      string `yaml:"report_title" json:"report_title"`
	Template         string `yaml:"template" json:"template"`
}

// PipelineDefinition is one rubric document: everything needed to build a
// grading pipeline for an assignment. Documents are JSON files in the
// rubric directory, one per assignment.
type PipelineDefinition struct {
	Name          string           `json:"name"`
	Template      string           `json:"template"`
	Criteria      rubric.Config    `json:"criteria"`
	Setup         *SetupConfig     `json:"setup,omitempty"`
	Feedback      *FeedbackOptions `json:"feedback,omitempty"`
	ExportEnabled bool             `json:"export_enabled"`
}
