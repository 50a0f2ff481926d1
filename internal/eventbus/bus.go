// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package eventbus carries job dispatch and completion events. The
// default transport is an in-process Go channel; NATS JetStream (external
// or embedded) is selected by configuration for multi-instance
// deployments.
package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/models"
)

// Bus owns the transport pair and, when configured, the embedded NATS
// server. Safe for concurrent publishing.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *server.Server
	logger     watermill.LoggerAdapter

	// shared marks the gochannel transport, where publisher and
	// subscriber are one object.
	shared bool
}

// New selects and connects the transport from configuration.
func New(cfg config.NATSConfig) (*Bus, error) {
	logger := NewWatermillLogger()

	if !cfg.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		logging.Info().Msg("Event bus using in-process channel transport")
		return &Bus{publisher: ch, subscriber: ch, logger: logger, shared: true}, nil
	}

	bus := &Bus{logger: logger}
	url := cfg.URL

	if cfg.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		bus.embedded = ns
		url = ns.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		bus.shutdownEmbedded()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	bus.publisher = pub

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWaitTimeout),
				natsgo.DeliverNew(),
			},
		},
	}, logger)
	if err != nil {
		pub.Close() //nolint:errcheck // already failing
		bus.shutdownEmbedded()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	bus.subscriber = sub

	logging.Info().Str("url", url).Bool("embedded", cfg.EmbeddedServer).
		Msg("Event bus using NATS JetStream transport")
	return bus, nil
}

func startEmbeddedServer(cfg config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName:         "pantrio-events",
		Port:               -1, // random free port
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		MaxPayload:         1024 * 1024,
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

// PublishJobQueued dispatches a queued job to the worker pool.
func (b *Bus) PublishJobQueued(ctx context.Context, job *models.RecognitionJob) error {
	msg, err := NewJobQueuedMessage(job)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := b.publisher.Publish(TopicJobQueued, msg); err != nil {
		return fmt.Errorf("publish job %s: %w", job.JobID, err)
	}
	return nil
}

// PublishCompleted announces a terminal job outcome. Best-effort: the
// job record already carries the durable state.
func (b *Bus) PublishCompleted(ctx context.Context, event RecognitionCompletedEvent) error {
	msg, err := NewCompletedMessage(event)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := b.publisher.Publish(TopicRecognitionCompleted, msg); err != nil {
		return fmt.Errorf("publish completion for job %s: %w", event.JobID, err)
	}
	return nil
}

// Publisher exposes the raw transport publisher for router middleware.
func (b *Bus) Publisher() message.Publisher {
	return b.publisher
}

// Subscriber exposes the raw transport subscriber for router handlers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Close shuts the transport down, embedded server last.
func (b *Bus) Close() error {
	var firstErr error
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.subscriber != nil && !b.shared {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.shutdownEmbedded()
	return firstErr
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded != nil {
		b.embedded.Shutdown()
		b.embedded.WaitForShutdown()
	}
}
