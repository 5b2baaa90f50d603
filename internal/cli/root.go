// Package cli implements the hashpulse command line: one-shot task runs and KV maintenance
// against the same backends the server uses.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/pscheid92/hashpulse/internal/app"
	"github.com/pscheid92/hashpulse/internal/platform/config"
	"github.com/pscheid92/hashpulse/internal/platform/logging"
	"github.com/pscheid92/hashpulse/internal/platform/version"
)

// Bootstrapper opens a runtime for one command invocation.
type Bootstrapper func(ctx context.Context) (*app.Runtime, error)

// FromEnv loads config from the environment and logs to stderr so stdout stays machine readable.
func FromEnv(ctx context.Context) (*app.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.InitLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return app.Bootstrap(ctx, cfg, clockwork.NewRealClock())
}

func NewRootCmd(boot Bootstrapper) *cobra.Command {
	root := &cobra.Command{
		Use:           "hashpulse",
		Short:         "Run hashtag collection and sentiment tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		runCmd(boot),
		tasksCmd(boot),
		kvCmd(boot),
		versionCmd(),
	)

	return root
}

// withRuntime bootstraps, runs fn and releases the runtime.
func withRuntime(cmd *cobra.Command, boot Bootstrapper, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := boot(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt.Service)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "hashpulse %s (commit: %s, built: %s, %s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion)
		},
	}
}
