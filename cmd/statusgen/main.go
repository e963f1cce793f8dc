package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"statusgen/internal/config"
	"statusgen/internal/logx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		log := logx.Ctx(ctx)
		log.Error().Err(err).Msg("statusgen command failed")
		return 1
	}
	return 0
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "statusgen",
		Short:         "WhatsApp status mock generator",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newNamesCmd())
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the configuration and installs the configured logger on
// the command context.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, context.Context, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logx.Init(cfg.Log)
	return cfg, logx.WithLogger(cmd.Context(), logger), nil
}
