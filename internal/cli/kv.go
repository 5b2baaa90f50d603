package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pscheid92/hashpulse/internal/app"
)

func kvCmd(boot Bootstrapper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write namespace keys (tokens, settings)",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <namespace> <key>",
			Short: "Print the value of a key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, boot, func(ctx context.Context, svc *app.Service) error {
					value, err := svc.GetKV(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "put <namespace> <key> <value>",
			Short: "Set a key",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, boot, func(ctx context.Context, svc *app.Service) error {
					return svc.PutKV(ctx, args[0], args[1], args[2])
				})
			},
		},
		&cobra.Command{
			Use:   "delete <namespace> <key>",
			Short: "Delete a key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, boot, func(ctx context.Context, svc *app.Service) error {
					return svc.DeleteKV(ctx, args[0], args[1])
				})
			},
		},
	)

	return cmd
}
