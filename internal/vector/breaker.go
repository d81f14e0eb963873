// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/metrics"
)

// ErrEncoderUnavailable is returned when the encoder circuit is open.
// Callers degrade: sourcing falls back to in-network-only, online learning
// skips the update and retries on the next event.
var ErrEncoderUnavailable = errors.New("encoder unavailable")

// BreakerConfig configures the encoder circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens the circuit.
	MaxFailures uint32

	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
}

// BreakerEncoder wraps an Encoder with a circuit breaker so a failing
// embedding backend degrades ranking instead of blocking it.
// Uses gobreaker v2 generic API.
type BreakerEncoder struct {
	inner  Encoder
	cb     *gobreaker.CircuitBreaker[[]float64]
	logger zerolog.Logger
}

// NewBreakerEncoder wraps enc with circuit-breaker protection.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func NewBreakerEncoder(enc Encoder, cfg BreakerConfig, logger zerolog.Logger) *BreakerEncoder {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	log := logger.With().Str("component", "encoder_breaker").Logger()

	settings := gobreaker.Settings{
		Name:    "encoder",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EncoderBreakerState.Set(breakerStateValue(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("encoder circuit state change")
		},
	}

	return &BreakerEncoder{
		inner:  enc,
		cb:     gobreaker.NewCircuitBreaker[[]float64](settings),
		logger: log,
	}
}

// Encode runs the inner encoder through the breaker.
func (b *BreakerEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	v, err := b.cb.Execute(func() ([]float64, error) {
		return b.inner.Encode(ctx, text)
	})
	if err != nil {
		return nil, b.mapErr(err)
	}
	metrics.EncoderCalls.WithLabelValues("ok").Inc()
	return v, nil
}

// EncodeHistory runs the inner history encoder through the breaker.
func (b *BreakerEncoder) EncodeHistory(ctx context.Context, texts []string) ([]float64, error) {
	v, err := b.cb.Execute(func() ([]float64, error) {
		return b.inner.EncodeHistory(ctx, texts)
	})
	if err != nil {
		return nil, b.mapErr(err)
	}
	metrics.EncoderCalls.WithLabelValues("ok").Inc()
	return v, nil
}

// Dimension returns the inner encoder's dimension.
func (b *BreakerEncoder) Dimension() int {
	return b.inner.Dimension()
}

// State returns the breaker state as a string for monitoring.
func (b *BreakerEncoder) State() string {
	return b.cb.State().String()
}

// mapErr collapses open-circuit errors into ErrEncoderUnavailable so callers
// have a single sentinel to branch on.
func (b *BreakerEncoder) mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.EncoderCalls.WithLabelValues("open").Inc()
		return ErrEncoderUnavailable
	}
	metrics.EncoderCalls.WithLabelValues("error").Inc()
	return err
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Ensure BreakerEncoder implements the interface.
var _ Encoder = (*BreakerEncoder)(nil)
