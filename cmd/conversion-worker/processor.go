package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/redpanda"
	"github.com/drfirst/go-rxhl7/pkg/idempotency"
	"github.com/drfirst/go-rxhl7/pkg/workerpool"
)

const (
	handlerName = "hl7-conversion"

	headerCorrelationID = "correlation-id"
	headerDLQReason     = "dlq-reason"
	headerDLQError      = "dlq-error"
	headerSourceTopic   = "source-topic"
)

type inbox interface {
	Process(ctx context.Context, key, handlerName string, payload []byte, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
}

type converter interface {
	Convert(ctx context.Context, req conversion.Request) (*conversion.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type task struct {
	key   string
	event convert.Event
	msg   *redpanda.ConsumedMessage
}

// processor converts consumed orders exactly once. Orders that are rejected
// or keep failing are parked on the dead letter topic so the partition keeps
// moving.
type processor struct {
	inbox           inbox
	service         converter
	deadLetter      publisher
	deadLetterTopic string
	pool            *workerpool.Pool[*task]
	logger          *zap.Logger
}

func newProcessor(in inbox, service converter, dlq publisher, dlqTopic string, poolCfg workerpool.Config, logger *zap.Logger) (*processor, error) {
	p := &processor{
		inbox:           in,
		service:         service,
		deadLetter:      dlq,
		deadLetterTopic: dlqTopic,
		logger:          logger,
	}
	pool, err := workerpool.New[*task](poolCfg, p.process, logger)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

func (p *processor) start() { p.pool.Start() }

func (p *processor) stop() error { return p.pool.Stop() }

// handle is the consumer callback.
func (p *processor) handle(ctx context.Context, msg *redpanda.ConsumedMessage) error {
	event := convert.ParseEvent(msg.Header(conversion.HeaderEvent))
	key := idempotency.GenerateKey(message.PeekControlID(string(msg.Value)), event.String(), msg.Value)

	err := p.pool.Do(ctx, key, &task{key: key, event: event, msg: msg})
	switch {
	case err == nil,
		errors.Is(err, idempotency.ErrDuplicateMessage),
		errors.Is(err, idempotency.ErrMessageInProgress):
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, workerpool.ErrPoolClosed):
		return err
	}

	reason := deadLetterReason(err)
	p.logger.Warn("parking order on dead letter topic",
		zap.String("idempotency_key", key),
		zap.String("event", event.String()),
		zap.String("reason", reason),
		zap.Int64("offset", msg.Offset),
		zap.Error(err))
	return p.park(ctx, msg, reason, err)
}

func (p *processor) process(ctx context.Context, t *task) error {
	correlationID := t.msg.Header(headerCorrelationID)
	if correlationID == "" {
		correlationID = t.key
	}

	res, err := p.inbox.Process(ctx, t.key, handlerName, t.msg.Value, func(ctx context.Context, payload []byte) (json.RawMessage, error) {
		result, err := p.service.Convert(ctx, conversion.Request{
			ID:            conversionID(t.key),
			Raw:           string(payload),
			Event:         t.event,
			CorrelationID: correlationID,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})

	switch {
	case err == nil:
		if !res.IsNew && !res.WasRecovered {
			p.logger.Debug("duplicate order skipped", zap.String("idempotency_key", t.key))
		}
		return nil
	case conversion.IsRejection(err),
		errors.Is(err, idempotency.ErrPreviouslyFailed),
		errors.Is(err, idempotency.ErrDuplicateMessage),
		errors.Is(err, idempotency.ErrMessageInProgress):
		return workerpool.Permanent(err)
	default:
		return err
	}
}

func (p *processor) park(ctx context.Context, msg *redpanda.ConsumedMessage, reason string, cause error) error {
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[headerDLQReason] = reason
	headers[headerDLQError] = cause.Error()
	headers[headerSourceTopic] = msg.Topic

	if err := p.deadLetter.Publish(ctx, p.deadLetterTopic, string(msg.Key), msg.Value, headers); err != nil {
		return fmt.Errorf("dead letter %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}

// conversionID derives a stable conversion id so a redelivered order lands
// on the same record.
func conversionID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func deadLetterReason(err error) string {
	switch {
	case conversion.IsRejection(err):
		return conversion.Reason(err)
	case errors.Is(err, idempotency.ErrPreviouslyFailed):
		return "previously_failed"
	default:
		return "retries_exhausted"
	}
}
