package machine

import (
	"context"
	"os"
	"strconv"

	"github.com/sethvargo/go-envconfig"
)

const (
	// EnvMgLog is the log level of machines (0-4).
	EnvMgLog = "MG_LOG"
	// EnvMgDebug enables verbose logging and ID prefixes.
	EnvMgDebug = "MG_DEBUG"
)

// Config is the env configuration of machines.
type Config struct {
	LogLevel LogLevel `env:"MG_LOG, default=0"`
	Debug    bool     `env:"MG_DEBUG, default=false"`
}

// ReadEnv reads Config from the process environment.
func ReadEnv(ctx context.Context) (*Config, error) {
	return readEnv(ctx, envconfig.OsLookuper())
}

func readEnv(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	config := &Config{}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   config,
		Lookuper: l,
	})
	if err != nil {
		return nil, err
	}

	return config, nil
}

// OptsFromEnv returns Opts based on MG_LOG and MG_DEBUG. MG_DEBUG bumps the
// log level to at least LogOps and prefixes logs with machine IDs.
func OptsFromEnv(ctx context.Context) (*Opts, error) {
	config, err := ReadEnv(ctx)
	if err != nil {
		return nil, err
	}

	return config.Opts(), nil
}

// Opts converts the config into machine Opts.
func (c *Config) Opts() *Opts {
	opts := &Opts{LogLevel: c.LogLevel}
	if c.Debug {
		opts.LogID = true
		opts.LogLevel = max(opts.LogLevel, LogOps)
	}

	return opts
}

// EnvLogLevel returns a log level from an environment variable, MG_LOG by
// default.
func EnvLogLevel(name string) LogLevel {
	if name == "" {
		name = EnvMgLog
	}
	v, _ := strconv.Atoi(os.Getenv(name))

	return LogLevel(v)
}
