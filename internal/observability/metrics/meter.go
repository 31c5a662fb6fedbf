// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Config struct {
	Enabled bool
}

type Meter struct {
	meter metric.Meter
}

func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: noop.NewMeterProvider().Meter(serviceName),
		}, nil
	}

	// Exporters are configured on the global provider by the process.
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Instruments are the counters recorded by the access core. A nil
// *Instruments is valid and records nothing.
type Instruments struct {
	sessionsIssued   metric.Int64Counter
	rotations        metric.Int64Counter
	rotationFailures metric.Int64Counter
	revocations      metric.Int64Counter
	authzDecisions   metric.Int64Counter
	cascadeRows      metric.Int64Counter
	cascadeDuration  metric.Float64Histogram
	resetTransitions metric.Int64Counter
}

// NewInstruments registers every counter on m.
func NewInstruments(m *Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	counters := []struct {
		dst         *metric.Int64Counter
		name, descr string
	}{
		{&in.sessionsIssued, "stride.sessions.issued", "Sessions issued at login"},
		{&in.rotations, "stride.refresh.rotations", "Successful refresh token rotations"},
		{&in.rotationFailures, "stride.refresh.failures", "Failed refresh token rotations by reason"},
		{&in.revocations, "stride.chain.revocations", "Refresh chains revoked by cause"},
		{&in.authzDecisions, "stride.authz.decisions", "Authorization verdicts by decision"},
		{&in.cascadeRows, "stride.cascade.rows_deleted", "Rows removed by cascade deletions"},
		{&in.resetTransitions, "stride.reset.transitions", "Password reset step transitions"},
	}
	for _, c := range counters {
		if *c.dst, err = m.CreateCounter(c.name, c.descr); err != nil {
			return nil, err
		}
	}
	if in.cascadeDuration, err = m.CreateHistogram("stride.cascade.duration", "Cascade deletion latency", "ms"); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *Instruments) SessionIssued(ctx context.Context) {
	if in == nil {
		return
	}
	in.sessionsIssued.Add(ctx, 1)
}

func (in *Instruments) Rotated(ctx context.Context) {
	if in == nil {
		return
	}
	in.rotations.Add(ctx, 1)
}

func (in *Instruments) RotationFailed(ctx context.Context, reason string) {
	if in == nil {
		return
	}
	in.rotationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (in *Instruments) ChainRevoked(ctx context.Context, cause string) {
	if in == nil {
		return
	}
	in.revocations.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}

func (in *Instruments) AuthzDecision(ctx context.Context, action, decision string) {
	if in == nil {
		return
	}
	in.authzDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("decision", decision),
	))
}

func (in *Instruments) CascadeDeleted(ctx context.Context, root string, rows int64, ms float64) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("root", root))
	in.cascadeRows.Add(ctx, rows, attrs)
	in.cascadeDuration.Record(ctx, ms, attrs)
}

func (in *Instruments) ResetTransition(ctx context.Context, step string) {
	if in == nil {
		return
	}
	in.resetTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}
