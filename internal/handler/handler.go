// Package handler admits ECS container instance state change notifications
// and reconciles every configured service in the notifying cluster.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexalbu001/ecs-scaler/internal/config"
	"github.com/alexalbu001/ecs-scaler/internal/log"
	"github.com/alexalbu001/ecs-scaler/internal/reconciler"
	"github.com/alexalbu001/ecs-scaler/pkg"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Fatal input errors. No backend call is made when one of these is returned.
var (
	ErrEmptyNotification     = errors.New("no event provided")
	ErrMalformedNotification = errors.New("malformed event")
	ErrUnsupportedSource     = fmt.Errorf("function only supports input from events with a source type of: %s", pkg.SourceECS)
	ErrNoServices            = errors.New("need to set `ECS_SERVICE_ARN` env var to serviceArn")
	ErrMissingDetailType     = errors.New("event has no detail-type")
	ErrMissingClusterArn     = errors.New("event detail has no clusterArn")
)

// Reconciler adjusts one service in one cluster
type Reconciler interface {
	Reconcile(ctx context.Context, cluster, service string) (*reconciler.Result, error)
}

// Summary describes what one invocation did
type Summary struct {
	Source     string
	DetailType string
	Cluster    string
	// Skipped is set when the detail-type was not a container instance state change
	Skipped bool
	Results []*reconciler.Result
}

// Handler is the event gate in front of the reconciler
type Handler struct {
	cfg        *config.Config
	reconciler Reconciler
	logger     zerolog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger overrides the component logger
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler. cfg is read on every invocation, so a missing
// service list fails each invocation rather than construction.
func NewHandler(cfg *config.Config, r Reconciler, opts ...Option) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	h := &Handler{
		cfg:        cfg,
		reconciler: r,
		logger:     log.WithComponent("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle is the Lambda entry point. Any returned error fails the invocation.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) error {
	if _, err := h.Process(ctx, payload); err != nil {
		h.logger.Error().Err(err).Msg("Invocation failed")
		return err
	}
	return nil
}

// Process validates the notification and, when it is a container instance
// state change from ECS, reconciles each configured service in list order.
//
// By default the first backend failure stops the remaining services. With
// ContinueOnError every service is attempted and the failures are joined.
func (h *Handler) Process(ctx context.Context, payload json.RawMessage) (*Summary, error) {
	event, hasDetailType, err := decodeEvent(payload)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Source: event.Source, DetailType: event.DetailType}

	if event.Source != pkg.SourceECS {
		return summary, fmt.Errorf("%w (got %q)", ErrUnsupportedSource, event.Source)
	}

	services := h.cfg.ServiceList()
	if len(services) == 0 {
		return summary, ErrNoServices
	}

	if !hasDetailType {
		return summary, ErrMissingDetailType
	}

	if event.DetailType != pkg.DetailTypeContainerInstanceStateChange {
		h.logger.Info().
			Str("detail_type", event.DetailType).
			Msgf("SKIP: Function operates only on %s events.", pkg.DetailTypeContainerInstanceStateChange)
		summary.Skipped = true
		return summary, nil
	}

	var detail pkg.ContainerInstanceDetail
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return summary, fmt.Errorf("%w: detail: %v", ErrMalformedNotification, err)
		}
	}
	if detail.ClusterArn == "" {
		return summary, ErrMissingClusterArn
	}
	summary.Cluster = detail.ClusterArn

	logger := h.logger.With().Str("cluster", detail.ClusterArn).Logger()

	var errs []error
	for _, service := range services {
		result, err := h.reconciler.Reconcile(ctx, detail.ClusterArn, service)
		if err != nil {
			err = fmt.Errorf("reconciling service %s: %w", service, err)
			if !h.cfg.ContinueOnError {
				return summary, err
			}
			logger.Error().Err(err).Str("service", service).Msg("Reconciliation failed, continuing")
			errs = append(errs, err)
			continue
		}
		summary.Results = append(summary.Results, result)
	}

	logger.Info().
		Int("services", len(services)).
		Int("failed", len(errs)).
		Msg("DONE")

	return summary, errors.Join(errs...)
}

// decodeEvent parses an EventBridge notification, rejecting empty input. The
// returned flag reports whether the detail-type key was present at all.
func decodeEvent(payload json.RawMessage) (*events.CloudWatchEvent, bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, ErrEmptyNotification
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if len(fields) == 0 {
		return nil, false, ErrEmptyNotification
	}

	var event events.CloudWatchEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	_, hasDetailType := fields["detail-type"]
	return &event, hasDetailType, nil
}
