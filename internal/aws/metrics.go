package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchAPI is the subset of the CloudWatch client used to publish metrics
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisher writes one datum set per desired count adjustment
type MetricsPublisher struct {
	client    CloudWatchAPI
	namespace string
	now       func() time.Time
}

func NewMetricsPublisher(client CloudWatchAPI, namespace string) *MetricsPublisher {
	return &MetricsPublisher{
		client:    client,
		namespace: namespace,
		now:       time.Now,
	}
}

// NewCloudWatchClient creates a CloudWatch client from an AWS config
func NewCloudWatchClient(cfg aws.Config) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(cfg)
}

// PublishAdjustment records that a service's desired count moved from
// previous to registered.
func (p *MetricsPublisher) PublishAdjustment(ctx context.Context, cluster, serviceName string, previous, registered int64) error {
	timestamp := p.now()
	dimensions := []types.Dimension{
		{
			Name:  aws.String("ClusterName"),
			Value: aws.String(ResourceName(cluster)),
		},
		{
			Name:  aws.String("ServiceName"),
			Value: aws.String(ResourceName(serviceName)),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String("DesiredCountAdjustments"),
				Dimensions: dimensions,
				Timestamp:  aws.Time(timestamp),
				Unit:       types.StandardUnitCount,
				Value:      aws.Float64(1),
			},
			{
				MetricName: aws.String("DesiredCountDelta"),
				Dimensions: dimensions,
				Timestamp:  aws.Time(timestamp),
				Unit:       types.StandardUnitCount,
				Value:      aws.Float64(float64(registered - previous)),
			},
			{
				MetricName: aws.String("RegisteredContainerInstances"),
				Dimensions: dimensions,
				Timestamp:  aws.Time(timestamp),
				Unit:       types.StandardUnitCount,
				Value:      aws.Float64(float64(registered)),
			},
		},
	}

	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("failed to publish metrics for service %s: %w", serviceName, err)
	}
	return nil
}
