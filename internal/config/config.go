package config

import (
	"fmt"
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/acolucci/partforge/internal/codegen"
	"github.com/acolucci/partforge/internal/schema"
)

// Config defines workspace configuration.
type Config struct {
	Workspaces WorkspacesConfig `yaml:"workspaces"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Codes      CodesConfig      `yaml:"codes"`
	Backup     BackupConfig     `yaml:"backup"`
	Log        LogConfig        `yaml:"log"`
}

type WorkspacesConfig struct {
	Root string `yaml:"root"`
}

type ArchiveConfig struct {
	Root string `yaml:"root"`
}

type CodesConfig struct {
	Separators     SeparatorsConfig         `yaml:"separators"`
	Segments       map[string]SegmentConfig `yaml:"segments"`
	VariantPresets []VariantPreset          `yaml:"variant_presets"`
}

type SeparatorsConfig struct {
	MachineGroup string `yaml:"machine_group"`
	GroupSeq     string `yaml:"group_seq"`
	VariantSeq   string `yaml:"variant_seq"`
}

// SegmentConfig overrides one code segment rule. Zero-valued fields keep
// the built-in rule.
type SegmentConfig struct {
	Length  int    `yaml:"length"`
	Charset string `yaml:"charset"`
	Case    string `yaml:"case"`
}

// VariantPreset is a suggested variant code offered in pickers.
type VariantPreset struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type BackupConfig struct {
	Retention int `yaml:"retention"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// segmentNames maps config keys to schema segment names.
var segmentNames = map[string]schema.Name{
	"machine":  schema.SegMachine,
	"group":    schema.SegGroup,
	"variant":  schema.SegVariant,
	"sequence": schema.SegSequence,
	"version":  schema.SegVersion,
}

// Load reads configuration from defaults, an optional YAML file, and
// PARTFORGE_* environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Config{
		Workspaces: WorkspacesConfig{Root: defaultWorkspacesRoot()},
		Archive:    ArchiveConfig{Root: "archive"},
		Codes: CodesConfig{
			Separators: SeparatorsConfig{MachineGroup: "_", GroupSeq: "-", VariantSeq: "-"},
		},
		Backup: BackupConfig{Retention: 30},
		Log:    LogConfig{Level: "info"},
	}

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if root := os.Getenv("PARTFORGE_WORKSPACES_ROOT"); root != "" {
		cfg.Workspaces.Root = root
	}
	if root := os.Getenv("PARTFORGE_ARCHIVE_ROOT"); root != "" {
		cfg.Archive.Root = root
	}
	if retStr := os.Getenv("PARTFORGE_BACKUP_RETENTION"); retStr != "" {
		ret, err := strconv.Atoi(retStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PARTFORGE_BACKUP_RETENTION: %w", err)
		}
		cfg.Backup.Retention = ret
	}
	if level := os.Getenv("PARTFORGE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for structural errors.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c.Archive,
		validation.Field(&c.Archive.Root, validation.Required),
	); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := validation.ValidateStruct(&c.Backup,
		validation.Field(&c.Backup.Retention, validation.Min(1), validation.Max(365)),
	); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	for key := range c.Codes.Segments {
		if _, ok := segmentNames[key]; !ok {
			return fmt.Errorf("codes: unknown segment %q", key)
		}
	}
	// the schema applies its own rule validation
	if _, err := c.Schema(); err != nil {
		return fmt.Errorf("codes: %w", err)
	}
	return nil
}

// Schema builds the code segment schema from the configured overrides.
func (c Config) Schema() (schema.Schema, error) {
	overrides := make(map[schema.Name]schema.Rule)
	for key, sc := range c.Codes.Segments {
		name, ok := segmentNames[key]
		if !ok {
			return schema.Schema{}, fmt.Errorf("unknown segment %q", key)
		}
		base, _ := schema.Default().Rule(name)
		rule := base
		if sc.Length > 0 {
			rule.Length = sc.Length
		}
		if sc.Charset != "" {
			rule.Charset = schema.Charset(sc.Charset)
		}
		if sc.Case != "" {
			rule.Case = schema.CaseMode(sc.Case)
		}
		overrides[name] = rule
	}
	return schema.New(overrides)
}

// Separators returns the configured code separators.
func (c Config) Separators() codegen.Separators {
	return codegen.Separators{
		MachineGroup: c.Codes.Separators.MachineGroup,
		GroupSeq:     c.Codes.Separators.GroupSeq,
		VariantSeq:   c.Codes.Separators.VariantSeq,
	}
}

func defaultWorkspacesRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".partforge"
	}
	return home + string(os.PathSeparator) + ".partforge"
}
