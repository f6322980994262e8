// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/fastlink/pkg/app"
	"github.com/yeisme/fastlink/pkg/configs"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   configs.AppName,
		Short: "Tiered download service: origin streaming server and edge cache proxy",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Bootstrap(configPath)
			if err != nil {
				return err
			}

			if debug && !cfg.Server.Debug {
				cfg.Server.Debug = true
				configs.SetConfig(*cfg)
			}

			return nil
		},
		SilenceUsage: true,
	}

	originCmd = &cobra.Command{
		Use:   "origin",
		Short: "run the origin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			o, err := app.NewOrigin(ctx, configs.GetConfig())
			if err != nil {
				return err
			}

			return o.Run(ctx)
		},
	}

	edgeCmd = &cobra.Command{
		Use:   "edge",
		Short: "run the edge cache proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			e, err := app.NewEdge(ctx, configs.GetConfig())
			if err != nil {
				return err
			}

			return e.Run(ctx)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(originCmd, edgeCmd)

	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerIngestCommands()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
