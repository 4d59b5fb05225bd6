package nativeload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type (
	// Config drives Setup.
	Config struct {
		Rule         Rule           `yaml:"rule" toml:"rule"`
		Flags        map[string]int `yaml:"flags" toml:"flags"`               //overrides keyed by constant name, e.g. RTLD_GLOBAL
		Unserialized bool           `yaml:"unserialized" toml:"unserialized"` //leave load serialization to the caller
		Companion    bool           `yaml:"companion" toml:"companion"`       //probe the companion library after install
		SearchPath   []string       `yaml:"search_path" toml:"search_path"`
		Debug        bool           `yaml:"debug" toml:"debug"`
		Log          LogConfig      `yaml:"log" toml:"log"`
	}
	// LogConfig selects where diagnostics go.
	LogConfig struct {
		Level      string `yaml:"level" toml:"level"`
		File       string `yaml:"file" toml:"file"` //stderr when empty
		MaxSize    int    `yaml:"max_size" toml:"max_size"`
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
		MaxAge     int    `yaml:"max_age" toml:"max_age"`
		Compress   bool   `yaml:"compress" toml:"compress"`
	}
)

// DefaultConfig uses DefaultRule and probes the companion in the directories of $PYTHONPATH.
func DefaultConfig() Config {
	return Config{
		Rule:       DefaultRule(),
		Companion:  true,
		SearchPath: filepath.SplitList(os.Getenv("PYTHONPATH")),
		Log: LogConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file over DefaultConfig.
func LoadConfig(path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return
	}
	defer fn.IgnoreClose(f)
	var b []byte
	if b, err = io.ReadAll(f); err != nil {
		return
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		err = fmt.Errorf("unknown config format: %s", path)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return
}

// MatchRule is Rule, or DefaultRule when Rule is empty.
func (c Config) MatchRule() Rule {
	r := c.Rule
	if r.RootToken == "" && len(r.Extensions) == 0 && len(r.Exceptions) == 0 {
		return DefaultRule()
	}
	return r
}

// Overrides converts Flags to a FlagSource.
func (c Config) Overrides() OverrideSource {
	if len(c.Flags) == 0 {
		return nil
	}
	o := make(OverrideSource, len(c.Flags))
	for k, v := range c.Flags {
		o[Constant(strings.ToUpper(k))] = Flags(v)
	}
	return o
}
