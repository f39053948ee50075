package cmd

import (
	"os"

	"github.com/alexalbu001/ecs-scaler/internal/handler"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

// runtimeAPIEnv is set by the Lambda runtime for custom runtimes, where the
// bootstrap binary is started with no arguments.
const runtimeAPIEnv = "AWS_LAMBDA_RUNTIME_API"

var startLambda = func(h interface{}) { lambda.Start(h) }

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function",
	Long: `Start the Lambda runtime loop. Each invocation receives one EventBridge
notification; ECS container instance state changes reconcile every service
listed in ECS_SERVICE_ARN against the notifying cluster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, err := newReconciler(cmd.Context())
		if err != nil {
			return err
		}

		startLambda(handler.NewHandler(cfg, rec).Handle)
		return nil
	},
}

// inLambda reports whether the process was started by the Lambda runtime
func inLambda() bool {
	return os.Getenv(runtimeAPIEnv) != ""
}
