package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pscheid92/hashpulse/internal/app"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

type runOptions struct {
	namespace string
	props     string
	propsFile string
	inputs    []string
}

func runCmd(boot Bootstrapper) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <type>",
		Short: "Run one task and print its output as JSON",
		Long: `Run one task synchronously against the configured backends.

Properties are the task's JSON property object, given inline with --props or read from --props-file.
Inputs are exposed to property templates as .inputs and are given as repeated --input key=value.`,
		Example: `  hashpulse run twitter.GetTweets --namespace acme --props '{"client_id":"abc","hashtag":"{{ .inputs.tag }}"}' --input tag=golang`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args[0])
			if err != nil {
				return err
			}

			return withRuntime(cmd, boot, func(ctx context.Context, svc *app.Service) error {
				result, err := svc.Run(ctx, req)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "namespace the run reads and writes")
	cmd.Flags().StringVar(&opts.props, "props", "", "task properties as a JSON object")
	cmd.Flags().StringVar(&opts.propsFile, "props-file", "", "read task properties from a JSON file")
	cmd.Flags().StringArrayVarP(&opts.inputs, "input", "i", nil, "template input as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("namespace")
	cmd.MarkFlagsMutuallyExclusive("props", "props-file")

	return cmd
}

func (o runOptions) request(taskType string) (app.RunRequest, error) {
	req := app.RunRequest{Type: taskType, Namespace: o.namespace}

	switch {
	case o.propsFile != "":
		data, err := os.ReadFile(o.propsFile)
		if err != nil {
			return app.RunRequest{}, fmt.Errorf("read properties: %w", err)
		}
		req.Properties = data
	case o.props != "":
		req.Properties = json.RawMessage(o.props)
	}
	if len(req.Properties) > 0 && !json.Valid(req.Properties) {
		return app.RunRequest{}, apperrors.ValidationError("properties must be valid JSON")
	}

	if len(o.inputs) > 0 {
		req.Inputs = make(map[string]any, len(o.inputs))
		for _, kv := range o.inputs {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return app.RunRequest{}, apperrors.ValidationError(fmt.Sprintf("input must be key=value, got %q", kv))
			}
			req.Inputs[key] = value
		}
	}

	return req, nil
}

func tasksCmd(boot Bootstrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the registered task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, boot, func(_ context.Context, svc *app.Service) error {
				for _, t := range svc.TaskTypes() {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), t); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
