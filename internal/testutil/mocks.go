// Package testutil provides ECS and CloudWatch mocks shared by package tests.
package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/stretchr/testify/mock"
)

// MockECSClient is a mock of the ECS client
type MockECSClient struct {
	mock.Mock
}

func (m *MockECSClient) DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	args := m.Called(ctx, params, optFns)
	return args.Get(0).(*ecs.DescribeServicesOutput), args.Error(1)
}

func (m *MockECSClient) DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error) {
	args := m.Called(ctx, params, optFns)
	return args.Get(0).(*ecs.DescribeClustersOutput), args.Error(1)
}

func (m *MockECSClient) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	args := m.Called(ctx, params, optFns)
	return args.Get(0).(*ecs.UpdateServiceOutput), args.Error(1)
}

// ExpectService stubs DescribeServices for a single service with the given desired count
func (m *MockECSClient) ExpectService(cluster, service string, desiredCount int32) *mock.Call {
	return m.On("DescribeServices", mock.Anything, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	}, mock.Anything).Return(&ecs.DescribeServicesOutput{
		Services: []types.Service{
			{
				ServiceName:  aws.String(service),
				DesiredCount: desiredCount,
				RunningCount: desiredCount,
				Status:       aws.String("ACTIVE"),
			},
		},
	}, nil)
}

// ExpectMissingService stubs DescribeServices to report the service as missing
func (m *MockECSClient) ExpectMissingService(cluster, service string) *mock.Call {
	return m.On("DescribeServices", mock.Anything, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	}, mock.Anything).Return(&ecs.DescribeServicesOutput{
		Failures: []types.Failure{
			{
				Arn:    aws.String(service),
				Reason: aws.String("MISSING"),
			},
		},
	}, nil)
}

// ExpectCluster stubs DescribeClusters with the given registered instance count
func (m *MockECSClient) ExpectCluster(cluster string, registered int32) *mock.Call {
	return m.On("DescribeClusters", mock.Anything, &ecs.DescribeClustersInput{
		Clusters: []string{cluster},
	}, mock.Anything).Return(&ecs.DescribeClustersOutput{
		Clusters: []types.Cluster{
			{
				ClusterArn:                        aws.String(cluster),
				ClusterName:                       aws.String(cluster),
				RegisteredContainerInstancesCount: registered,
				Status:                            aws.String("ACTIVE"),
			},
		},
	}, nil)
}

// ExpectUpdate stubs UpdateService for an exact (cluster, service, desiredCount)
func (m *MockECSClient) ExpectUpdate(cluster, service string, desiredCount int32) *mock.Call {
	return m.On("UpdateService", mock.Anything, &ecs.UpdateServiceInput{
		Cluster:      aws.String(cluster),
		Service:      aws.String(service),
		DesiredCount: aws.Int32(desiredCount),
	}, mock.Anything).Return(&ecs.UpdateServiceOutput{
		Service: &types.Service{
			ServiceName:  aws.String(service),
			DesiredCount: desiredCount,
			Status:       aws.String("ACTIVE"),
		},
	}, nil)
}

// MockCloudWatchClient is a mock of the CloudWatch client
type MockCloudWatchClient struct {
	mock.Mock
}

func (m *MockCloudWatchClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params, optFns)
	return args.Get(0).(*cloudwatch.PutMetricDataOutput), args.Error(1)
}
