// Package telemetry provides OpenTelemetry meters for ledger operations.
// A nil *Metrics is a valid no-op, so components can take it optionally.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the ledger's instrument set.
type Metrics struct {
	actionsCreated   metric.Int64Counter
	promisesCreated  metric.Int64Counter
	promisesResolved metric.Int64Counter
	feesCollected    metric.Int64Counter
	slashes          metric.Int64Counter
	stakedVolume     metric.Int64UpDownCounter
}

// New registers the instrument set on meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.actionsCreated, err = meter.Int64Counter("rain.actions.created",
		metric.WithDescription("Fee-gated actions created"),
		metric.WithUnit("{action}")); err != nil {
		return nil, err
	}
	if m.promisesCreated, err = meter.Int64Counter("rain.promises.created",
		metric.WithDescription("Promises created"),
		metric.WithUnit("{promise}")); err != nil {
		return nil, err
	}
	if m.promisesResolved, err = meter.Int64Counter("rain.promises.resolved",
		metric.WithDescription("Promises resolved, by outcome"),
		metric.WithUnit("{promise}")); err != nil {
		return nil, err
	}
	if m.feesCollected, err = meter.Int64Counter("rain.fees.collected",
		metric.WithDescription("Protocol fees collected, in minor units")); err != nil {
		return nil, err
	}
	if m.slashes, err = meter.Int64Counter("rain.reputation.slashed",
		metric.WithDescription("Reputation slashed, actual amounts")); err != nil {
		return nil, err
	}
	if m.stakedVolume, err = meter.Int64UpDownCounter("rain.reputation.staked",
		metric.WithDescription("Currently staked reputation")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAction counts one created action and its fee.
func (m *Metrics) RecordAction(ctx context.Context, fee int64) {
	if m == nil {
		return
	}
	m.actionsCreated.Add(ctx, 1)
	m.feesCollected.Add(ctx, fee)
}

// RecordPromiseCreated counts one created promise.
func (m *Metrics) RecordPromiseCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.promisesCreated.Add(ctx, 1)
}

// RecordPromiseResolved counts one resolution with its outcome.
func (m *Metrics) RecordPromiseResolved(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.promisesResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSlash counts actual slashed reputation.
func (m *Metrics) RecordSlash(ctx context.Context, actual int64) {
	if m == nil {
		return
	}
	m.slashes.Add(ctx, actual)
}

// RecordStakeDelta tracks staked volume up and down.
func (m *Metrics) RecordStakeDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.stakedVolume.Add(ctx, delta)
}
