// Package studio parses studio service flags and launches the service.
package studio

import (
	"context"
	"flag"

	entrypoint "github.com/lumenfoto/backstage/internal/platform/cmd"
	server "github.com/lumenfoto/backstage/internal/services/studio/app"
)

// Config holds studio command configuration.
type Config struct {
	Port int `env:"BACKSTAGE_STUDIO_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The studio HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the studio HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStudio, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
