package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/orbit/internal/app"
	"github.com/MrSnakeDoc/orbit/internal/config"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ orbit: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "orbit",
		Short: "Orbit - tabbed AI chat browser core",
		Long: `Orbit keeps a tabbed chat session per profile, routes every address bar
input to navigation, search or a model, and serves the session over HTTP.

Configuration is read from ORBIT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newAskCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("orbit failed to start: %w", err)
			}
			return a.Run(cmd.Context())
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		mode    string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "ask <input>",
		Short: "Submit one address bar input and print the answer",
		Long: `Resolve input the way the address bar does. URLs print their final
address, everything else is sent to the configured model and streamed.

The session is kept in memory and discarded on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseMode(mode)
			if err != nil {
				return err
			}

			level := "error"
			if verbose {
				level = "debug"
			}
			log := logger.New(level, false)
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Ask(ctx, config.Load(), app.AskRequest{
				Input: args[0],
				Mode:  m,
			}, cmd.OutOrStdout(), log)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "request mode (normal, fast, pro, direct, simple, image, video)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
