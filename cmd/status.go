package cmd

import (
	"errors"
	"fmt"

	"github.com/alexalbu001/ecs-scaler/internal/aws"
	"github.com/alexalbu001/ecs-scaler/internal/log"
	"github.com/alexalbu001/ecs-scaler/internal/ui"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show desired count drift for services in a cluster",
	Long: `Open a terminal dashboard listing each configured service with its desired,
running and registered instance counts. Drifted services can be reconciled
from the dashboard.`,
	Example: `  ecs-scaler status --cluster prod --services api,worker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, _ := cmd.Flags().GetString("cluster")

		services := cfg.ServiceList()
		if len(services) == 0 {
			return errors.New("no services configured: set --services or ECS_SERVICE_ARN")
		}

		// Log lines would draw over the dashboard
		log.Logger = zerolog.Nop()

		rec, client, err := newReconciler(cmd.Context())
		if err != nil {
			return err
		}

		targets, err := aws.DescribeTargets(cmd.Context(), client, cluster, services)
		if err != nil {
			return fmt.Errorf("error fetching services: %w", err)
		}

		app := tview.NewApplication()
		ui.DisplayTargets(app, cmd.Context(), client, rec, cluster, services, targets)

		if err := app.Run(); err != nil {
			return fmt.Errorf("error running application: %w", err)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("cluster", "", "Cluster name or ARN")
	statusCmd.Flags().String("services", "", "Comma-separated services (overrides ECS_SERVICE_ARN)")
	_ = statusCmd.MarkFlagRequired("cluster")
}
