package reconciler

import (
	"context"
	"errors"

	"github.com/alexalbu001/ecs-scaler/internal/aws"
	"github.com/alexalbu001/ecs-scaler/internal/log"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
)

// Action describes what a reconciliation did
type Action string

const (
	ActionServiceNotFound Action = "service_not_found"
	ActionInSync          Action = "in_sync"
	ActionAdjusted        Action = "adjusted"
)

// AdjustmentRecorder records desired count changes
type AdjustmentRecorder interface {
	PublishAdjustment(ctx context.Context, cluster, serviceName string, previous, registered int64) error
}

// Result is the outcome of reconciling one service
type Result struct {
	Cluster             string
	Service             string
	Action              Action
	PreviousDesired     int64
	RegisteredInstances int64
	// Updated is the service as returned by UpdateService, set only on ActionAdjusted
	Updated *types.Service
}

// Reconciler sets a service's desired count to its cluster's registered
// container instance count
type Reconciler struct {
	client   aws.ECSAPI
	recorder AdjustmentRecorder
	logger   zerolog.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithRecorder publishes every adjustment through r
func WithRecorder(r AdjustmentRecorder) Option {
	return func(rec *Reconciler) {
		rec.recorder = r
	}
}

// WithLogger overrides the component logger
func WithLogger(logger zerolog.Logger) Option {
	return func(rec *Reconciler) {
		rec.logger = logger
	}
}

// NewReconciler creates a new reconciler
func NewReconciler(client aws.ECSAPI, opts ...Option) *Reconciler {
	r := &Reconciler{
		client: client,
		logger: log.WithComponent("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings one service's desired count in line with the number of
// registered container instances in cluster. A missing service and matching
// counts are both skips, not errors. At most one UpdateService call is made
// and backend errors are returned without retry.
func (r *Reconciler) Reconcile(ctx context.Context, cluster, service string) (*Result, error) {
	logger := r.logger.With().Str("cluster", cluster).Str("service", service).Logger()
	result := &Result{Cluster: cluster, Service: service}

	state, err := aws.GetServiceState(ctx, r.client, cluster, service)
	if errors.Is(err, aws.ErrServiceNotFound) {
		logger.Info().Msgf("SKIP: Service not found in cluster %s", cluster)
		result.Action = ActionServiceNotFound
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	clusterState, err := aws.GetClusterState(ctx, r.client, cluster)
	if err != nil {
		return nil, err
	}

	result.PreviousDesired = state.DesiredCount
	result.RegisteredInstances = clusterState.RegisteredContainerInstancesCount

	logger = logger.With().
		Int64("desired_count", result.PreviousDesired).
		Int64("registered_instances", result.RegisteredInstances).
		Logger()

	if result.PreviousDesired == result.RegisteredInstances {
		logger.Info().Msgf("SKIP: Cluster %s has %d desired tasks for %d registered instances.",
			cluster, result.PreviousDesired, result.RegisteredInstances)
		result.Action = ActionInSync
		return result, nil
	}

	logger.Info().Msgf("Adjusting cluster '%s' to run %d tasks of service '%s'",
		cluster, result.RegisteredInstances, service)

	updated, err := aws.UpdateServiceDesiredCount(ctx, r.client, service, cluster, result.RegisteredInstances)
	if err != nil {
		return nil, err
	}

	result.Action = ActionAdjusted
	result.Updated = updated
	if updated != nil {
		logger.Info().
			Str("service_status", sdkaws.ToString(updated.Status)).
			Int32("new_desired_count", updated.DesiredCount).
			Msg("Service updated")
	}

	if r.recorder != nil {
		if err := r.recorder.PublishAdjustment(ctx, cluster, service, result.PreviousDesired, result.RegisteredInstances); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish adjustment metrics")
		}
	}

	return result, nil
}
