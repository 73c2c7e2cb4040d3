package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

const (
	envPrefix = "TLSPROFILER"

	backendNative = "native"
	backendSSLyze = "sslyze"

	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	defaultConcurrency        = 4
	defaultSSLyzeTimeoutSecs  = 600
	defaultProfilesTimeoutSec = 30
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Profiles ProfilesConfig
	Audit    AuditRuntimeConfig
	SSLyze   SSLyzeConfig
	LogLevel string
}

// ProfilesConfig selects where the Mozilla profile document comes from.
// File wins over URL when both are set.
type ProfilesConfig struct {
	URL  string
	File string
}

// AuditRuntimeConfig consolidates flag-driven settings for the audit command.
type AuditRuntimeConfig struct {
	Profile          string
	Backend          string
	Format           string
	Concurrency      int
	RateLimit        int
	TimeoutSecs      int
	ProbeTimeoutSecs int
	TrustStores      []string
	Save             bool
	NoProgress       bool
}

// SSLyzeConfig configures the sslyze backend.
type SSLyzeConfig struct {
	Path        string
	TimeoutSecs int
}

func (c AuditRuntimeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c AuditRuntimeConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSecs) * time.Second
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Profiles: ProfilesConfig{
			URL: constants.DefaultProfilesURL,
		},
		Audit: AuditRuntimeConfig{
			Profile:          constants.DefaultProfile,
			Backend:          backendNative,
			Format:           formatText,
			Concurrency:      defaultConcurrency,
			RateLimit:        0,
			TimeoutSecs:      int(constants.DefaultAuditTimeout / time.Second),
			ProbeTimeoutSecs: int(constants.DefaultProbeTimeout / time.Second),
		},
		SSLyze: SSLyzeConfig{
			Path:        "sslyze",
			TimeoutSecs: defaultSSLyzeTimeoutSecs,
		},
		LogLevel: "warn",
	}
}

func detectOperatorFromEnv() string {
	if env := os.Getenv("USER"); env != "" {
		return env
	}
	if env := os.Getenv("LOGNAME"); env != "" {
		return env
	}
	return ""
}

// initViper points viper at the config file and the TLSPROFILER_ env vars.
// A missing default config file is not an error; an explicit one is.
func initViper(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("$HOME")
		v.SetConfigName(".tlsprofiler")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return configError("failed to read config file %s: %v", cfgFile, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return configError("failed to read config file: %v", err)
		}
	}
	return nil
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(v *viper.Viper, cmd *cobra.Command, cfg *CLIConfig) {
	if v.IsSet("profiles.url") {
		cfg.Profiles.URL = v.GetString("profiles.url")
	}
	if v.IsSet("profiles.file") {
		applyStringDefault(cmd.Flags(), "profiles-file", v.GetString("profiles.file"), func(s string) {
			cfg.Profiles.File = s
		})
	}
	if v.IsSet("sslyze.path") {
		cfg.SSLyze.Path = v.GetString("sslyze.path")
	}
	if v.IsSet("sslyze.timeout_secs") {
		cfg.SSLyze.TimeoutSecs = v.GetInt("sslyze.timeout_secs")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}

	flags := cmd.Flags()
	if v.IsSet("defaults.profile") {
		applyStringDefault(flags, "profile", v.GetString("defaults.profile"), func(s string) {
			cfg.Audit.Profile = s
		})
	}
	if v.IsSet("defaults.backend") {
		applyStringDefault(flags, "backend", v.GetString("defaults.backend"), func(s string) {
			cfg.Audit.Backend = s
		})
	}
	if v.IsSet("defaults.format") {
		applyStringDefault(flags, "format", v.GetString("defaults.format"), func(s string) {
			cfg.Audit.Format = s
		})
	}
	if v.IsSet("defaults.timeout_secs") {
		applyIntDefault(flags, "timeout", v.GetInt("defaults.timeout_secs"), func(n int) {
			cfg.Audit.TimeoutSecs = n
		})
	}
	if v.IsSet("defaults.probe_timeout_secs") {
		applyIntDefault(flags, "probe-timeout", v.GetInt("defaults.probe_timeout_secs"), func(n int) {
			cfg.Audit.ProbeTimeoutSecs = n
		})
	}
	if v.IsSet("defaults.concurrency") {
		applyIntDefault(flags, "concurrency", v.GetInt("defaults.concurrency"), func(n int) {
			cfg.Audit.Concurrency = n
		})
	}
	if v.IsSet("defaults.rate_limit") {
		applyIntDefault(flags, "rate-limit", v.GetInt("defaults.rate_limit"), func(n int) {
			cfg.Audit.RateLimit = n
		})
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if flags == nil || setter == nil || value == "" {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
