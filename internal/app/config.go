package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config carries everything the application needs for one invocation.
// Values come from flags with TASKFORGE_* environment variables as
// fallback; environment-style settings passed through to task actions have
// no effect on scheduling semantics.
type Config struct {
	BuildFile string
	LockFile  string
	CacheDir  string
	Workers   int
	KeepGoing bool
	LogLevel  string
	LogFormat string
}

// LoadConfig merges the given flag set over TASKFORGE_* environment
// variables and built-in defaults.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TASKFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("file", "forge.hcl")
	v.SetDefault("lockfile", "forge.lock")
	v.SetDefault("cache-dir", ".forge/cache")
	v.SetDefault("workers", 0)
	v.SetDefault("keep-going", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		BuildFile: v.GetString("file"),
		LockFile:  v.GetString("lockfile"),
		CacheDir:  v.GetString("cache-dir"),
		Workers:   v.GetInt("workers"),
		KeepGoing: v.GetBool("keep-going"),
		LogLevel:  strings.ToLower(v.GetString("log-level")),
		LogFormat: strings.ToLower(v.GetString("log-format")),
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level %q: must be debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format %q: must be text or json", c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must be zero or positive", c.Workers)
	}
	return nil
}
