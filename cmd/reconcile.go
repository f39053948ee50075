package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile services in a cluster without an event",
	Long: `Set the desired count of each service to the cluster's registered container
instance count. Services come from --services or ECS_SERVICE_ARN.`,
	Example: `  ecs-scaler reconcile --cluster prod --services api,worker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster, _ := cmd.Flags().GetString("cluster")

		services := cfg.ServiceList()
		if len(services) == 0 {
			return errors.New("no services configured: set --services or ECS_SERVICE_ARN")
		}

		rec, _, err := newReconciler(cmd.Context())
		if err != nil {
			return err
		}

		var errs []error
		for _, service := range services {
			if _, err := rec.Reconcile(cmd.Context(), cluster, service); err != nil {
				err = fmt.Errorf("reconciling service %s: %w", service, err)
				if !cfg.ContinueOnError {
					return err
				}
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}

func init() {
	reconcileCmd.Flags().String("cluster", "", "Cluster name or ARN")
	reconcileCmd.Flags().String("services", "", "Comma-separated services (overrides ECS_SERVICE_ARN)")
	_ = reconcileCmd.MarkFlagRequired("cluster")
}
