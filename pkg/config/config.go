// Package config loads process configuration for the cmd/ridgeline CLI
// from a YAML file, the same shape the teacher's cmd/warren apply.go reads
// resource manifests with (gopkg.in/yaml.v3, unmarshal into a plain
// struct). Unlike a resource manifest, this file is read once at process
// start and merged with command-line flags: flag values passed explicitly
// on the command line override the file, and built-in defaults fill
// whatever neither one sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/ridgeline/pkg/types"
)

// AccessRule mirrors pkg/mirror.AccessRule in a YAML-friendly shape; config
// never imports pkg/mirror directly so the ambient config package stays
// free of the mirror scheduler's dependency surface.
type AccessRule struct {
	Order   int    `yaml:"order"`
	Pattern string `yaml:"pattern"`
	Allow   bool   `yaml:"allow"`
}

// MirrorConfig is the subset of server configuration the Mirror Scheduler
// needs: its task list, the access rules gating remote URIs, and the
// credentials those tasks resolve CredentialRef against.
type MirrorConfig struct {
	Tasks       []types.MirrorTaskConfig    `yaml:"tasks"`
	AccessRules []AccessRule                `yaml:"accessRules"`
	Credentials map[string]types.Credential `yaml:"credentials"`
}

// Config is the full set of process configuration read from ridgeline.yaml.
type Config struct {
	NodeID       string       `yaml:"nodeId"`
	BindAddr     string       `yaml:"bindAddr"`
	DataDir      string       `yaml:"dataDir"`
	Replicated   bool         `yaml:"replicated"`
	Zone         string       `yaml:"zone"`
	DefaultZone  string       `yaml:"defaultZone"`
	ClusterZones []string     `yaml:"clusterZones"`
	Mirror       MirrorConfig `yaml:"mirror"`
}

// Default returns the built-in baseline every field falls back to when
// neither a flag nor a config file sets it.
func Default() Config {
	return Config{
		NodeID:      "node-1",
		BindAddr:    "127.0.0.1:7946",
		DataDir:     "./ridgeline-data",
		DefaultZone: "",
	}
}

// Load reads and parses path; a missing file is not an error — Default()
// is returned unchanged so a bare `ridgeline cluster init` with no
// --config still works, matching how the teacher's CLI never requires a
// config file for single-node use.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg back to path as YAML, the counterpart Load's mirror
// add/remove-task CLI commands use to persist a change to the task list.
func Save(path string, cfg Config) error {
	if path == "" {
		return fmt.Errorf("no config file path given (use --config)")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
