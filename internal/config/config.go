package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds ambient settings. Everything that changes host state is
// chosen interactively; nothing here can pre-answer a prompt.
type Config struct {
	LogLevel              string `mapstructure:"log_level"`
	LogFormat             string `mapstructure:"log_format"`
	LogFile               string `mapstructure:"log_file"`
	LogMaxSizeMB          int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups         int    `mapstructure:"log_max_backups"`
	CommandTimeoutSeconds int    `mapstructure:"command_timeout_seconds"`
	PosixAdminGroup       string `mapstructure:"posix_admin_group"`
	RequireElevation      bool   `mapstructure:"require_elevation"`
}

func Default() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		LogMaxSizeMB:          10,
		LogMaxBackups:         3,
		CommandTimeoutSeconds: 600,
		PosixAdminGroup:       "sudo",
	}
}

// Load reads remediate.yaml from the platform config directory (or the
// working directory) and BREEZE_REMEDIATE_* environment variables. A
// missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("remediate")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BREEZE_REMEDIATE")
	v.AutomaticEnv()
	for _, key := range []string{
		"log_level", "log_format", "log_file", "log_max_size_mb", "log_max_backups",
		"command_timeout_seconds", "posix_admin_group", "require_elevation",
	} {
		// Unmarshal only sees env values for keys viper already knows about.
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Breeze")
	case "darwin":
		return "/Library/Application Support/Breeze"
	default:
		return "/etc/breeze"
	}
}
