package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alexalbu001/ecs-scaler/internal/config"
	"github.com/alexalbu001/ecs-scaler/internal/reconciler"
	"github.com/alexalbu001/ecs-scaler/internal/testutil"
	"github.com/alexalbu001/ecs-scaler/pkg"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const clusterArn = "arn:aws:ecs:cluster/prod"

func notification(source, detailType string, detail any) json.RawMessage {
	event := map[string]any{
		"version":     "0",
		"id":          "8f07cb2f-5e5b-4bd4-9e4d-4a5c5c0b1d2e",
		"account":     "123456789012",
		"region":      "us-east-1",
		"time":        "2024-05-01T12:00:00Z",
		"resources":   []string{},
		"source":      source,
		"detail-type": detailType,
	}
	if detail != nil {
		event["detail"] = detail
	}
	payload, _ := json.Marshal(event)
	return payload
}

func instanceChange() json.RawMessage {
	return notification(pkg.SourceECS, pkg.DetailTypeContainerInstanceStateChange, map[string]any{
		"clusterArn":           clusterArn,
		"containerInstanceArn": "arn:aws:ecs:container-instance/prod/abc",
		"status":               "ACTIVE",
		"agentConnected":       true,
	})
}

func newTestHandler(client *testutil.MockECSClient, cfg *config.Config) (*Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r := reconciler.NewReconciler(client, reconciler.WithLogger(logger))
	return NewHandler(cfg, r, WithLogger(logger)), &buf
}

func assertNoBackendCalls(t *testing.T, client *testutil.MockECSClient) {
	t.Helper()
	client.AssertNotCalled(t, "DescribeServices", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "DescribeClusters", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "UpdateService", mock.Anything, mock.Anything, mock.Anything)
}

func TestScenarioAdjustAndSkipMissing(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	mockClient.ExpectService(clusterArn, "svc-a", 2)
	mockClient.ExpectMissingService(clusterArn, "svc-b")
	mockClient.ExpectCluster(clusterArn, 4)
	mockClient.ExpectUpdate(clusterArn, "svc-a", 4).Once()

	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a,svc-b"})
	summary, err := h.Process(context.Background(), instanceChange())

	require.NoError(t, err)
	assert.Equal(t, clusterArn, summary.Cluster)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, reconciler.ActionAdjusted, summary.Results[0].Action)
	assert.Equal(t, reconciler.ActionServiceNotFound, summary.Results[1].Action)
	assert.Contains(t, logs.String(), "SKIP: Service not found in cluster")
	assert.Contains(t, logs.String(), "DONE")

	mockClient.AssertNumberOfCalls(t, "UpdateService", 1)
	mockClient.AssertExpectations(t)
}

func TestScenarioAllInSync(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	mockClient.ExpectService(clusterArn, "svc-a", 3)
	mockClient.ExpectService(clusterArn, "svc-b", 3)
	mockClient.ExpectCluster(clusterArn, 3)

	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a,svc-b"})
	summary, err := h.Process(context.Background(), instanceChange())

	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, result := range summary.Results {
		assert.Equal(t, reconciler.ActionInSync, result.Action)
	}
	assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("has 3 desired tasks for 3 registered instances")))
	mockClient.AssertNotCalled(t, "UpdateService", mock.Anything, mock.Anything, mock.Anything)
}

func TestScenarioOtherDetailType(t *testing.T) {
	mockClient := new(testutil.MockECSClient)

	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})
	summary, err := h.Process(context.Background(), notification(pkg.SourceECS, pkg.DetailTypeTaskStateChange, map[string]any{
		"clusterArn": clusterArn,
	}))

	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Empty(t, summary.Results)
	assert.Contains(t, logs.String(), "SKIP: Function operates only on ECS Container Instance State Change events.")
	assertNoBackendCalls(t, mockClient)
}

func TestScenarioEmptyNotification(t *testing.T) {
	for name, payload := range map[string]json.RawMessage{
		"nil":          nil,
		"blank":        json.RawMessage("  "),
		"null":         json.RawMessage("null"),
		"empty object": json.RawMessage("{}"),
	} {
		t.Run(name, func(t *testing.T) {
			mockClient := new(testutil.MockECSClient)
			h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

			_, err := h.Process(context.Background(), payload)

			assert.ErrorIs(t, err, ErrEmptyNotification)
			assertNoBackendCalls(t, mockClient)
		})
	}
}

func TestMalformedNotification(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	_, err := h.Process(context.Background(), json.RawMessage(`["aws.ecs"]`))

	assert.ErrorIs(t, err, ErrMalformedNotification)
	assertNoBackendCalls(t, mockClient)
}

func TestUnsupportedSource(t *testing.T) {
	tests := map[string]json.RawMessage{
		"mismatched": notification("aws.ec2", pkg.DetailTypeContainerInstanceStateChange, map[string]any{"clusterArn": clusterArn}),
		"missing":    json.RawMessage(`{"detail-type": "ECS Container Instance State Change", "detail": {"clusterArn": "x"}}`),
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			mockClient := new(testutil.MockECSClient)
			h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

			_, err := h.Process(context.Background(), payload)

			assert.ErrorIs(t, err, ErrUnsupportedSource)
			assertNoBackendCalls(t, mockClient)
		})
	}
}

func TestMissingServiceConfiguration(t *testing.T) {
	tests := map[string]*config.Config{
		"nil config":    nil,
		"empty list":    {ServiceArns: ""},
		"blank trimmed": {ServiceArns: " , ", TrimSpace: true},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			mockClient := new(testutil.MockECSClient)
			h, _ := newTestHandler(mockClient, cfg)

			_, err := h.Process(context.Background(), instanceChange())

			assert.ErrorIs(t, err, ErrNoServices)
			assertNoBackendCalls(t, mockClient)
		})
	}
}

func TestServiceConfigurationCheckedBeforeDetailType(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{})

	_, err := h.Process(context.Background(), notification(pkg.SourceECS, pkg.DetailTypeTaskStateChange, nil))

	assert.ErrorIs(t, err, ErrNoServices)
}

func TestMissingDetailTypeIsFatal(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	_, err := h.Process(context.Background(), json.RawMessage(`{"source":"aws.ecs","detail":{"clusterArn":"arn:aws:ecs:cluster/prod"}}`))

	assert.ErrorIs(t, err, ErrMissingDetailType)
	assert.NotContains(t, logs.String(), "SKIP")
	assertNoBackendCalls(t, mockClient)
}

func TestEmptyDetailTypeIsSkipped(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	summary, err := h.Process(context.Background(), notification(pkg.SourceECS, "", map[string]any{"clusterArn": clusterArn}))

	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assertNoBackendCalls(t, mockClient)
}

func TestOtherEcsDetailTypesAreSkipped(t *testing.T) {
	for _, detailType := range []string{pkg.DetailTypeTaskStateChange, pkg.DetailTypeServiceAction, pkg.DetailTypeDeploymentStateChange} {
		t.Run(detailType, func(t *testing.T) {
			mockClient := new(testutil.MockECSClient)
			h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

			summary, err := h.Process(context.Background(), notification(pkg.SourceECS, detailType, map[string]any{"clusterArn": clusterArn}))

			require.NoError(t, err)
			assert.True(t, summary.Skipped)
			assertNoBackendCalls(t, mockClient)
		})
	}
}

func TestMissingClusterArn(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	_, err := h.Process(context.Background(), notification(pkg.SourceECS, pkg.DetailTypeContainerInstanceStateChange, map[string]any{
		"status": "ACTIVE",
	}))

	assert.ErrorIs(t, err, ErrMissingClusterArn)
	assertNoBackendCalls(t, mockClient)
}

func TestMissingDetail(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	_, err := h.Process(context.Background(), notification(pkg.SourceECS, pkg.DetailTypeContainerInstanceStateChange, nil))

	assert.ErrorIs(t, err, ErrMissingClusterArn)
}

func TestServicesReconciledInListOrder(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	for _, svc := range []string{"svc-c", "svc-a", "svc-b"} {
		mockClient.ExpectService(clusterArn, svc, 1)
	}
	mockClient.ExpectCluster(clusterArn, 1)

	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-c,svc-a,svc-b"})
	summary, err := h.Process(context.Background(), instanceChange())

	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, "svc-c", summary.Results[0].Service)
	assert.Equal(t, "svc-a", summary.Results[1].Service)
	assert.Equal(t, "svc-b", summary.Results[2].Service)
}

func TestVerbatimSplitKeepsPadding(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	mockClient.ExpectService(clusterArn, "svc-a", 1)
	mockClient.ExpectMissingService(clusterArn, " svc-b")
	mockClient.ExpectCluster(clusterArn, 1)

	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a, svc-b"})
	summary, err := h.Process(context.Background(), instanceChange())

	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, " svc-b", summary.Results[1].Service)
	mockClient.AssertExpectations(t)
}

func TestTrimSpaceOption(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	mockClient.ExpectService(clusterArn, "svc-a", 1)
	mockClient.ExpectService(clusterArn, "svc-b", 1)
	mockClient.ExpectCluster(clusterArn, 1)

	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: " svc-a , svc-b ,", TrimSpace: true})
	summary, err := h.Process(context.Background(), instanceChange())

	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "svc-a", summary.Results[0].Service)
	assert.Equal(t, "svc-b", summary.Results[1].Service)
	mockClient.AssertExpectations(t)
}

func TestBackendFailureAbortsRemainingServices(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	apiErr := errors.New("throttled")
	mockClient.ExpectService(clusterArn, "svc-a", 2)
	mockClient.ExpectCluster(clusterArn, 4)
	mockClient.On("UpdateService", mock.Anything, mock.Anything, mock.Anything).
		Return((*ecs.UpdateServiceOutput)(nil), apiErr).Once()

	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a,svc-b"})
	summary, err := h.Process(context.Background(), instanceChange())

	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), "reconciling service svc-a")
	assert.Empty(t, summary.Results)
	assert.NotContains(t, logs.String(), "DONE")
	mockClient.AssertNumberOfCalls(t, "DescribeServices", 1)
}

func TestContinueOnErrorIsolatesFailures(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	apiErr := errors.New("throttled")
	mockClient.ExpectService(clusterArn, "svc-a", 2)
	mockClient.ExpectService(clusterArn, "svc-b", 2)
	mockClient.ExpectCluster(clusterArn, 4)
	mockClient.On("UpdateService", mock.Anything, mock.MatchedBy(func(input *ecs.UpdateServiceInput) bool {
		return *input.Service == "svc-a"
	}), mock.Anything).Return((*ecs.UpdateServiceOutput)(nil), apiErr).Once()
	mockClient.ExpectUpdate(clusterArn, "svc-b", 4).Once()

	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a,svc-b", ContinueOnError: true})
	summary, err := h.Process(context.Background(), instanceChange())

	assert.ErrorIs(t, err, apiErr)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "svc-b", summary.Results[0].Service)
	assert.Equal(t, reconciler.ActionAdjusted, summary.Results[0].Action)
	assert.Contains(t, logs.String(), "Reconciliation failed, continuing")
	assert.Contains(t, logs.String(), "DONE")
	mockClient.AssertNumberOfCalls(t, "UpdateService", 2)
}

func TestHandleReturnsError(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, logs := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	err := h.Handle(context.Background(), nil)

	assert.ErrorIs(t, err, ErrEmptyNotification)
	assert.Contains(t, logs.String(), "Invocation failed")
}

func TestHandleSkipIsNotAnError(t *testing.T) {
	mockClient := new(testutil.MockECSClient)
	h, _ := newTestHandler(mockClient, &config.Config{ServiceArns: "svc-a"})

	err := h.Handle(context.Background(), notification(pkg.SourceECS, pkg.DetailTypeServiceAction, map[string]any{}))

	assert.NoError(t, err)
	assertNoBackendCalls(t, mockClient)
}
