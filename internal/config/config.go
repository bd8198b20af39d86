// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads the global mikrobak configuration. It uses Viper for
// file/env/flag parsing and goccy/go-yaml to persist a default file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/toeirei/mikrobak/internal/model"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "mikrobak"

// Config is the global configuration record. It is built once per process
// and passed explicitly to the components that need it.
type Config struct {
	DefaultParams DefaultParams `mapstructure:"default_params" yaml:"default_params"`
	FolderPaths   FolderPaths   `mapstructure:"folder_paths" yaml:"folder_paths"`
	SSH           SSH           `mapstructure:"ssh" yaml:"ssh"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	Fetch         Fetch         `mapstructure:"fetch" yaml:"fetch"`
	History       History       `mapstructure:"history" yaml:"history"`
	Metrics       Metrics       `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultParams holds the backup settings shared by the whole fleet and the
// optional fleet-wide connection defaults. Zero values mean "not configured".
type DefaultParams struct {
	BackupFilename string `mapstructure:"backup_filename" yaml:"backup_filename"`
	BackupPassword string `mapstructure:"backup_password" yaml:"backup_password"`
	Port           int    `mapstructure:"port" yaml:"port"`
	Username       string `mapstructure:"username" yaml:"username"`
	Password       string `mapstructure:"password" yaml:"password"`
}

// FolderPaths locates the inventory sources.
type FolderPaths struct {
	HostsFolderPath string `mapstructure:"hosts_folder_path" yaml:"hosts_folder_path"`
	VarsFolderPath  string `mapstructure:"vars_folder_path" yaml:"vars_folder_path"`
	GroupsFile      string `mapstructure:"groups_file" yaml:"groups_file"`
}

// SSH configures the remote sessions.
type SSH struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	KnownHosts string        `mapstructure:"known_hosts" yaml:"known_hosts"`
}

// Fetch configures downloading the produced backup file.
type Fetch struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
}

// History configures the run history database. An empty Type disables it.
type History struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

// Metrics configures the Prometheus textfile export.
type Metrics struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Defaults returns the default key/value map used by LoadConfig.
func Defaults() map[string]any {
	return map[string]any{
		"default_params.backup_filename": "",
		"default_params.backup_password": "",
		"default_params.port":            0,
		"default_params.username":        "",
		"default_params.password":        "",
		"folder_paths.hosts_folder_path": "./hosts",
		"folder_paths.vars_folder_path":  "./vars",
		"folder_paths.groups_file":       "./groups.ini",
		"ssh.timeout":                    "5s",
		"ssh.known_hosts":                "",
		"workers":                        1,
		"fetch.enabled":                  false,
		"fetch.dir":                      "./backups",
		"fetch.compress":                 false,
		"history.type":                   "",
		"history.dsn":                    "",
		"metrics.textfile":               "",
	}
}

// FlagKeys maps command-line flag names to configuration keys for flags
// whose name differs from the key.
var FlagKeys = map[string]string{
	"timeout":      "ssh.timeout",
	"known-hosts":  "ssh.known_hosts",
	"fetch":        "fetch.enabled",
	"fetch-dir":    "fetch.dir",
	"compress":     "fetch.compress",
	"metrics-file": "metrics.textfile",
	"history-type": "history.type",
	"history-dsn":  "history.dsn",
}

// BackupSettings resolves the run-wide backup filename and password. now is
// evaluated by the caller once per run so every device shares the same
// timestamp-derived default.
func (c Config) BackupSettings(now time.Time) model.BackupSettings {
	return model.BackupSettings{
		Filename: c.DefaultParams.BackupFilename,
		Password: c.DefaultParams.BackupPassword,
	}.WithDefaults(now)
}

// FleetDefaults returns the configured fleet-wide connection defaults.
// Unset values stay absent.
func (c Config) FleetDefaults() model.Attributes {
	var a model.Attributes
	if c.DefaultParams.Port > 0 {
		a.Port = model.Some(c.DefaultParams.Port)
	}
	if c.DefaultParams.Username != "" {
		a.Username = model.Some(c.DefaultParams.Username)
	}
	if c.DefaultParams.Password != "" {
		a.Password = model.Some(c.DefaultParams.Password)
	}
	return a
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "mikrobak")
		default:
			configDir = "/etc/mikrobak"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "mikrobak")
	}

	return filepath.Join(configDir, "mikrobak.yaml"), nil
}

// LoadConfig builds a T from defaults, the first config file found, the
// environment and the command's flags, in increasing precedence.
//
// When no config file exists the returned error is a
// viper.ConfigFileNotFoundError and the returned value is still populated
// from the remaining sources.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("mikrobak")
	v.SetConfigType("yaml")

	// An explicit --config file wins over the search path.
	if configFile != nil {
		v.SetConfigFile(*configFile)
	}

	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	readErr := v.ReadInConfig()
	if readErr != nil {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
			return c, readErr
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key := f.Name
			if mapped, ok := FlagKeys[f.Name]; ok {
				key = mapped
			}
			if _, known := defaults[key]; !known {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return c, bindErr
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, readErr
}

// WriteConfigFile persists c to the user (or system) configuration path and
// returns the path written.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}
	return path, WriteConfigFileTo(c, path)
}

// WriteConfigFileTo persists c as YAML at path, creating parent directories.
func WriteConfigFileTo[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file may hold device and backup passwords.
	return os.WriteFile(path, data, 0600)
}
