package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/resilience"
)

const (
	DefaultSubject      = "diagram.extract.requested"
	DefaultQueueGroup   = "extract-workers"
	DefaultDrainTimeout = 30 * time.Second
)

// classifyPublish retries publishes that failed on connection state.
var classifyPublish = resilience.ClassifyWith(func(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected)
})

type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
	logger     *slog.Logger
	onLag      func(time.Duration)
	drain      time.Duration
}

type Options struct {
	Subject              string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	// LagObserver receives the delay between publish and delivery.
	LagObserver func(time.Duration)
	// DrainTimeout bounds the handling of messages delivered after shutdown
	// begins.
	DrainTimeout time.Duration
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	drainTimeout := options.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("pid-asset-extractor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", errString(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    orDefault(options.Subject, DefaultSubject),
		queueGroup: orDefault(options.QueueGroup, DefaultQueueGroup),
		executor:   options.ResilienceExecutor,
		logger:     logger,
		onLag:      options.LagObserver,
		drain:      drainTimeout,
	}, nil
}

func (q *Queue) Subject() string { return q.subject }

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishExtractRequested(ctx context.Context, diagramID string) error {
	payload, err := encodeExtractRequested(diagramID, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, resilience.OpQueuePublish, call, classifyPublish)
	} else {
		err = call(ctx)
	}
	return resilience.MarkTemporary("publish extract request", err, classifyPublish)
}

// SubscribeExtractRequested blocks until ctx is done, then drains the
// subscription. Requests still buffered at that point are handled with a
// detached context bounded by the drain timeout, so none is dropped.
func (q *Queue) SubscribeExtractRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		q.deliver(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	closed := sub.StatusChanged(nats.SubscriptionClosed)
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	select {
	case <-closed:
	case <-time.After(q.drain):
		q.logger.Warn("nats_drain_timeout", "subject", q.subject, "timeout", q.drain.String())
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) deliver(ctx context.Context, data []byte, handler func(context.Context, string) error) {
	event, err := decodeExtractRequested(data)
	if err != nil {
		q.logger.Warn("extract_request_invalid", "error", err.Error())
		return
	}

	if q.onLag != nil && !event.RequestedAt.IsZero() {
		q.onLag(time.Since(event.RequestedAt))
	}

	var (
		handlerCtx context.Context
		cancel     context.CancelFunc
	)
	if ctx.Err() != nil {
		handlerCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), q.drain)
		q.logger.Info("extract_request_drained", "diagram_id", event.DiagramID)
	} else {
		handlerCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	if err := handler(handlerCtx, event.DiagramID); err != nil {
		q.logger.Error("extract_request_failed", "diagram_id", event.DiagramID, "error", err.Error())
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
