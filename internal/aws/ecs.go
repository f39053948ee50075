package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexalbu001/ecs-scaler/pkg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// DescribeServices accepts at most 10 services per call
const maxDescribeServicesBatchSize = 10

var (
	// ErrServiceNotFound is returned when ECS reports no matching service in the cluster
	ErrServiceNotFound = errors.New("service not found in cluster")
	// ErrClusterNotFound is returned when ECS reports no matching cluster
	ErrClusterNotFound = errors.New("cluster not found")
)

// ECSAPI is the subset of the ECS client used to read and adjust services
type ECSAPI interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

// LoadConfig loads the default AWS configuration, optionally pinned to a region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewECSClient creates an ECS client from an AWS config
func NewECSClient(cfg aws.Config) *ecs.Client {
	return ecs.NewFromConfig(cfg)
}

// GetServiceState fetches the desired and running count of a single service.
// ErrServiceNotFound is returned when the cluster has no such service.
func GetServiceState(ctx context.Context, client ECSAPI, cluster, serviceName string) (*pkg.ServiceState, error) {
	output, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{serviceName},
	})
	if err != nil {
		return nil, fmt.Errorf("error describing service %s in cluster %s: %w", serviceName, cluster, err)
	}

	if len(output.Services) == 0 {
		return nil, fmt.Errorf("%w: service %s, cluster %s", ErrServiceNotFound, serviceName, cluster)
	}

	service := output.Services[0]
	return &pkg.ServiceState{
		Cluster:      cluster,
		ServiceName:  aws.ToString(service.ServiceName),
		Status:       aws.ToString(service.Status),
		DesiredCount: int64(service.DesiredCount),
		RunningCount: int64(service.RunningCount),
	}, nil
}

// GetClusterState fetches the registered container instance count of a cluster.
func GetClusterState(ctx context.Context, client ECSAPI, cluster string) (*pkg.ClusterState, error) {
	output, err := client.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{cluster},
	})
	if err != nil {
		return nil, fmt.Errorf("error describing cluster %s: %w", cluster, err)
	}

	if len(output.Clusters) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, cluster)
	}

	c := output.Clusters[0]
	return &pkg.ClusterState{
		ClusterArn:                        aws.ToString(c.ClusterArn),
		ClusterName:                       aws.ToString(c.ClusterName),
		RegisteredContainerInstancesCount: int64(c.RegisteredContainerInstancesCount),
	}, nil
}

// UpdateServiceDesiredCount updates the desired count for a given ECS service
// and returns the service as reported back by ECS.
func UpdateServiceDesiredCount(ctx context.Context, client ECSAPI, serviceName, cluster string, desiredCount int64) (*types.Service, error) {
	output, err := client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(cluster),
		Service:      aws.String(serviceName),
		DesiredCount: aws.Int32(int32(desiredCount)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update service %s in cluster %s: %w", serviceName, cluster, err)
	}
	return output.Service, nil
}

// DescribeTargets reports desired, running and registered counts for each
// requested service in one cluster, preserving the requested order.
// Services ECS does not know are returned with Found unset.
func DescribeTargets(ctx context.Context, client ECSAPI, cluster string, services []string) ([]pkg.TargetStatus, error) {
	clusterState, err := GetClusterState(ctx, client, cluster)
	if err != nil {
		return nil, err
	}

	known, err := describeServicesInBatches(ctx, client, cluster, services)
	if err != nil {
		return nil, err
	}

	statuses := make([]pkg.TargetStatus, 0, len(services))
	for _, name := range services {
		status := pkg.TargetStatus{
			Cluster:             cluster,
			ServiceName:         name,
			RegisteredInstances: clusterState.RegisteredContainerInstancesCount,
		}
		if service, ok := known[name]; ok {
			status.Found = true
			status.Status = aws.ToString(service.Status)
			status.DesiredCount = int64(service.DesiredCount)
			status.RunningCount = int64(service.RunningCount)
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// describeServicesInBatches describes services for a given cluster in batches,
// indexing the result by both service name and ARN.
func describeServicesInBatches(ctx context.Context, client ECSAPI, cluster string, services []string) (map[string]types.Service, error) {
	names := make([]string, 0, len(services))
	for _, s := range services {
		if strings.TrimSpace(s) != "" {
			names = append(names, s)
		}
	}

	known := make(map[string]types.Service, len(names))
	for i := 0; i < len(names); i += maxDescribeServicesBatchSize {
		end := i + maxDescribeServicesBatchSize
		if end > len(names) {
			end = len(names)
		}

		output, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(cluster),
			Services: names[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("error describing services in cluster %s: %w", cluster, err)
		}

		for _, service := range output.Services {
			known[aws.ToString(service.ServiceName)] = service
			known[aws.ToString(service.ServiceArn)] = service
		}
	}

	return known, nil
}

// ResourceName returns the last path segment of an ARN, or the input unchanged
// when it is already a plain name.
func ResourceName(arnOrName string) string {
	if i := strings.LastIndex(arnOrName, "/"); i >= 0 {
		return arnOrName[i+1:]
	}
	return arnOrName
}
