package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// DefaultFile is the pipeline file looked for when none is given.
const DefaultFile = ".pvci.yml"

type (
	// Pipeline is the parsed pipeline file. Versions come from the key
	// named after the language, travis-style:
	//
	//	language: python
	//	python: ["2.7", "3.6"]
	Pipeline struct {
		Language      string
		Versions      []string
		Env           EnvBlock
		Install       []string
		Script        []string
		AfterSuccess  []string
		Notifications Notifications
		Deploy        *Deploy
	}
	// EnvBlock holds KEY=VALUE lines applied to every matrix entry.
	EnvBlock struct {
		Global []string `yaml:"global"`
	}
	Notifications struct {
		Webhook string `yaml:"webhook"`
	}
	// Deploy describes the conditional publish step. Credentials are
	// never part of the file; they come from the process environment at
	// run time.
	Deploy struct {
		Provider string     `yaml:"provider"`
		User     string     `yaml:"user"`
		Script   []string   `yaml:"script"`
		On       Conditions `yaml:"on"`
	}
	// Conditions gate the deploy. Every set condition must hold; any
	// single unmet condition suppresses the deploy.
	Conditions struct {
		Tags    bool   `yaml:"tags"`
		Branch  string `yaml:"branch"`
		Version string `yaml:"version"`
	}
)

type pipelineFile struct {
	Language      string        `yaml:"language"`
	Env           EnvBlock      `yaml:"env"`
	Install       []string      `yaml:"install"`
	Script        []string      `yaml:"script"`
	AfterSuccess  []string      `yaml:"after_success"`
	Notifications Notifications `yaml:"notifications"`
	Deploy        *Deploy       `yaml:"deploy"`
}

// Load reads and validates a pipeline file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates pipeline file contents.
func Parse(data []byte) (*Pipeline, error) {
	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	p := Pipeline{
		Language:      strings.TrimSpace(file.Language),
		Env:           file.Env,
		Install:       file.Install,
		Script:        file.Script,
		AfterSuccess:  file.AfterSuccess,
		Notifications: file.Notifications,
		Deploy:        file.Deploy,
	}
	if p.Language == "" {
		return nil, fmt.Errorf("pipeline: language must be set")
	}
	// The version list sits under a key named after the language, so a
	// second pass over the raw document picks it up. Unquoted versions
	// parse as numbers and get stringified back.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	versions, err := versionList(raw[p.Language])
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", p.Language, err)
	}
	p.Versions = versions
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func versionList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("version list missing")
	case []interface{}:
		versions := make([]string, 0, len(v))
		for _, item := range v {
			versions = append(versions, fmt.Sprintf("%v", item))
		}
		return versions, nil
	default:
		return []string{fmt.Sprintf("%v", v)}, nil
	}
}

func (p *Pipeline) validate() error {
	if len(p.Versions) == 0 {
		return fmt.Errorf("pipeline: %s: version list empty", p.Language)
	}
	if len(p.Script) == 0 {
		return fmt.Errorf("pipeline: script: at least one step required")
	}
	for _, line := range p.Env.Global {
		if _, _, ok := parseEnvLine(line); !ok {
			return fmt.Errorf("pipeline: env.global: not a KEY=VALUE line: %q", line)
		}
	}
	if p.Deploy != nil {
		switch p.Deploy.Provider {
		case "pypi":
		case "script":
			if len(p.Deploy.Script) == 0 {
				return fmt.Errorf("pipeline: deploy.script: required for the script provider")
			}
		default:
			return fmt.Errorf("pipeline: deploy.provider: unknown provider %q", p.Deploy.Provider)
		}
		if v := p.Deploy.On.Version; v != "" && !contains(p.Versions, v) {
			return fmt.Errorf("pipeline: deploy.on.version: %q is not in the version matrix", v)
		}
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
