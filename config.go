package pvinstall

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

const configFilename = "config.yml"

type (
	// LinkSpec describes one directory link the installer maintains: a
	// source directory relative to the suite checkout, and a target
	// location relative to the ParaView installation root. Target paths
	// are written with forward slashes and converted per platform.
	LinkSpec struct {
		Name   string `yaml:"name"`
		Source string `yaml:"source"`
		Target string `yaml:"target"`
	}
	// Config is the compiled-in installer configuration from the resource
	// box.
	Config struct {
		Product      string     `yaml:"product"`
		Version      string     `yaml:"version"`
		EnvVar       string     `yaml:"env_var"`
		Links        []LinkSpec `yaml:"links"`
		PipelineFile string     `yaml:"pipeline_file"`
		Variables    StringMap  `yaml:"variables"`
	}
)

// NewConfig parses the embedded config file.
func NewConfig() (*Config, error) {
	configFile := MustGetResource(configFilename)
	config := Config{Variables: make(StringMap)}
	if err := yaml.Unmarshal([]byte(configFile), &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFilename, err)
	}
	if config.EnvVar == "" {
		return nil, fmt.Errorf("%s: env_var must be set", configFilename)
	}
	if len(config.Links) == 0 {
		return nil, fmt.Errorf("%s: no links configured", configFilename)
	}
	for _, link := range config.Links {
		if link.Source == "" || link.Target == "" {
			return nil, fmt.Errorf("%s: link %q needs both source and target", configFilename, link.Name)
		}
	}
	config.Variables["product"] = config.Product
	config.Variables["version"] = config.Version
	config.Variables["envVar"] = config.EnvVar
	return &config, nil
}

// Settings are optional per-user overrides, read from a TOML file. The zero
// value leaves every compiled-in default in place.
type Settings struct {
	Target   string
	Language string
	LogLevel string
}

type settingsFile struct {
	Target   string `toml:"target"`
	Language string `toml:"language"`
	LogLevel string `toml:"log_level"`
}

// LoadSettings reads a settings file. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	var settings Settings
	var raw settingsFile
	meta, err := toml.DecodeFile(path, &raw)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("load settings %s: %w", path, err)
	}
	if meta.IsDefined("target") {
		settings.Target = strings.TrimSpace(raw.Target)
	}
	if meta.IsDefined("language") {
		settings.Language = strings.TrimSpace(raw.Language)
	}
	if meta.IsDefined("log_level") {
		settings.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return settings, nil
}

// LoadUserSettings tries the working directory first, then the user config
// dir.
func LoadUserSettings() (Settings, error) {
	paths := []string{"pvinstall.toml"}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "pvinstall", "settings.toml"))
	}
	for _, path := range paths {
		settings, err := LoadSettings(path)
		if err != nil {
			return Settings{}, err
		}
		if settings != (Settings{}) {
			return settings, nil
		}
	}
	return Settings{}, nil
}
