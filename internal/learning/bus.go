// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/logging"
)

// Bus is the engagement event transport: in-process Go channels by default,
// NATS JetStream (external or embedded) when configured.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *server.Server
	logger     watermill.LoggerAdapter
}

// NewBus builds the event bus from configuration.
func NewBus(cfg config.NATSConfig) (*Bus, error) {
	wmLogger := newWatermillLogger(logging.Logger())

	if !cfg.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wmLogger)
		return &Bus{publisher: ch, subscriber: ch, logger: wmLogger}, nil
	}

	url := cfg.URL
	var embedded *server.Server
	if cfg.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		embedded = ns
		url = ns.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, wmLogger)
	if err != nil {
		shutdownEmbedded(embedded)
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Unmarshaler: &wmNats.NATSMarshaler{},
		QueueGroupPrefix: cfg.QueueGroup,
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
		},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		shutdownEmbedded(embedded)
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{publisher: pub, subscriber: sub, embedded: embedded, logger: wmLogger}, nil
}

// Publisher returns the bus publisher.
func (b *Bus) Publisher() message.Publisher { return b.publisher }

// Subscriber returns the bus subscriber.
func (b *Bus) Subscriber() message.Subscriber { return b.subscriber }

// Close shuts the transport down, embedded server last.
func (b *Bus) Close() error {
	var firstErr error
	if err := b.publisher.Close(); err != nil {
		firstErr = err
	}
	// GoChannel is a single pub/sub value; avoid double close.
	if any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	shutdownEmbedded(b.embedded)
	return firstErr
}

// startEmbeddedServer boots an in-process NATS JetStream server for
// single-binary deployments.
func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName:         "ranklab-events",
		Port:               server.RANDOM_PORT,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	return ns, nil
}

func shutdownEmbedded(ns *server.Server) {
	if ns == nil {
		return
	}
	ns.Shutdown()
	ns.WaitForShutdown()
}

// watermillLogger adapts zerolog to watermill.LoggerAdapter.
type watermillLogger struct {
	logger zerolog.Logger
}

//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func newWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger.With().Str("component", "bus").Logger()}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := l.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
