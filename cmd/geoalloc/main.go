// geoalloc resolves IP addresses to the country and state they are
// allocated to, using a CSV dataset of CIDR ranges.
//
// Usage:
//
//	geoalloc [--config file] serve          run the HTTP and gRPC services
//	geoalloc [--config file] repl           interactive lookups on stdin
//	geoalloc [--config file] lookup <ip>... one-shot lookups
//
// Settings come from defaults, the optional config file, a .env file and
// environment variables, in increasing order of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TomasB/geoalloc/internal/config"
	"github.com/urfave/cli/v3"
)

// Version is set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := createApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "geoalloc",
		Usage:   "IP address to country/state allocation lookup",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file",
				Sources: cli.EnvVars("GEOALLOC_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and gRPC services",
				Action: serveAction,
			},
			{
				Name:   "repl",
				Usage:  "look up addresses interactively",
				Action: replAction,
			},
			{
				Name:      "lookup",
				Usage:     "look up one or more addresses",
				ArgsUsage: "<ip>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "remote",
						Usage: "query a running service at this gRPC address instead of loading the dataset",
					},
				},
				Action: lookupAction,
			},
		},
		DefaultCommand: "repl",
	}
}

// loadConfig reads and validates the settings named by the --config flag.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
