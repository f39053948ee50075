package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alexalbu001/ecs-scaler/internal/handler"
	"github.com/alexalbu001/ecs-scaler/internal/log"
	"github.com/spf13/cobra"
)

var handleCmd = &cobra.Command{
	Use:   "handle",
	Short: "Process one notification from a file or stdin",
	Long: `Run the event handler once against a JSON EventBridge notification, exactly
as the Lambda function would. Use "-" to read the event from stdin.`,
	Example: `  ecs-scaler handle --event event.json
  cat event.json | ecs-scaler handle --event -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("event")

		payload, err := readEvent(cmd, path)
		if err != nil {
			return err
		}

		rec, _, err := newReconciler(cmd.Context())
		if err != nil {
			return err
		}

		summary, err := handler.NewHandler(cfg, rec).Process(cmd.Context(), payload)
		if err != nil {
			return err
		}

		logger := log.WithComponent("cli")
		for _, result := range summary.Results {
			logger.Info().
				Str("service", result.Service).
				Str("action", string(result.Action)).
				Int64("desired_count", result.PreviousDesired).
				Int64("registered_instances", result.RegisteredInstances).
				Msg("Result")
		}
		return nil
	},
}

func init() {
	handleCmd.Flags().String("event", "-", "Path to the notification JSON, or - for stdin")
	handleCmd.Flags().String("services", "", "Comma-separated services (overrides ECS_SERVICE_ARN)")
}

func readEvent(cmd *cobra.Command, path string) (json.RawMessage, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("error reading event from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading event file: %w", err)
	}
	return data, nil
}
