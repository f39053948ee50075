package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/alexalbu001/ecs-scaler/internal/aws"
	"github.com/alexalbu001/ecs-scaler/internal/config"
	"github.com/alexalbu001/ecs-scaler/internal/log"
	"github.com/alexalbu001/ecs-scaler/internal/reconciler"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"

	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ecs-scaler",
	Short: "Keep ECS service desired counts equal to registered container instances",
	Long: `ecs-scaler reacts to ECS container instance state changes by setting the
desired count of each configured service to the number of container
instances registered in the cluster.

Run it as a Lambda function behind an EventBridge rule with "ecs-scaler lambda",
or use the other commands to replay events and inspect drift locally. Started
with no command inside the Lambda runtime, it runs the lambda command.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("services") {
			services, _ := cmd.Flags().GetString("services")
			v.Set("ecs_service_arn", services)
		}

		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if inLambda() {
			return lambdaCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("region", "", "AWS region (defaults to the SDK resolution chain)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Emit JSON log lines")
	flags.Bool("trim-space", false, "Trim whitespace around each configured service")
	flags.Bool("continue-on-error", false, "Keep reconciling remaining services after a failure")
	flags.String("metrics-namespace", "", "CloudWatch namespace for adjustment metrics (disabled when empty)")

	bindFlag("region", "aws_region")
	bindFlag("log-level", "log_level")
	bindFlag("log-json", "log_json")
	bindFlag("trim-space", "scaler_trim_space")
	bindFlag("continue-on-error", "scaler_continue_on_error")
	bindFlag("metrics-namespace", "scaler_metrics_namespace")

	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(handleCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statusCmd)
}

func bindFlag(name, key string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newReconciler builds the ECS client and reconciler from the loaded config.
// CloudWatch metrics are wired only when a namespace is configured.
func newReconciler(ctx context.Context) (*reconciler.Reconciler, *ecs.Client, error) {
	awsCfg, err := aws.LoadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, nil, err
	}

	client := aws.NewECSClient(awsCfg)

	var opts []reconciler.Option
	if cfg.MetricsNamespace != "" {
		publisher := aws.NewMetricsPublisher(aws.NewCloudWatchClient(awsCfg), cfg.MetricsNamespace)
		opts = append(opts, reconciler.WithRecorder(publisher))
	}

	return reconciler.NewReconciler(client, opts...), client, nil
}
