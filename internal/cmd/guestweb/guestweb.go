// Package guestweb parses guest web service flags and launches the service.
package guestweb

import (
	"context"
	"flag"

	entrypoint "github.com/lumenfoto/backstage/internal/platform/cmd"
	server "github.com/lumenfoto/backstage/internal/services/guestweb/app"
)

// Config holds guest web command configuration.
type Config struct {
	Port int `env:"BACKSTAGE_GUESTWEB_PORT" envDefault:"8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The guest web HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the guest web HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGuestWeb, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
