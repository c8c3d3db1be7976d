package events

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/finledger/backend/internal/logging"
)

// MirrorQueue is the redis list external consumers (reporting, alerting)
// read accepted events from.
const MirrorQueue = "balance_events"

// Applier is the balance mutation protocol as seen by the dispatcher.
type Applier interface {
	OnTransactionCreated(ctx context.Context, ev TransactionCreated) error
	OnTransactionStatusChanged(ctx context.Context, ev TransactionStatusChanged) error
}

// Dispatcher delivers events to the balance protocol synchronously, then
// mirrors accepted ones onto a redis queue. It is the single place ordering
// and at-most-once are enforced; the transport is not trusted for either.
type Dispatcher struct {
	applier Applier
	redis   *redis.Client
	log     *logrus.Entry
}

func NewDispatcher(applier Applier, redisClient *redis.Client) *Dispatcher {
	return &Dispatcher{
		applier: applier,
		redis:   redisClient,
		log:     logging.For("dispatcher"),
	}
}

// TransactionCreated hands a creation notification to the balance protocol.
// Mutation errors are returned to the caller for retry or alerting, never
// swallowed.
func (d *Dispatcher) TransactionCreated(ctx context.Context, ev TransactionCreated) error {
	if err := d.applier.OnTransactionCreated(ctx, ev); err != nil {
		d.log.WithFields(logrus.Fields{
			logging.FieldTransactionID: ev.TransactionID,
			logging.FieldAccountID:     ev.AccountID,
			logging.FieldError:         err,
		}).Error("creation event failed")
		return err
	}
	d.mirror(ctx, "transaction.created", ev)
	return nil
}

// TransactionStatusChanged hands a status-change notification to the balance
// protocol.
func (d *Dispatcher) TransactionStatusChanged(ctx context.Context, ev TransactionStatusChanged) error {
	if err := d.applier.OnTransactionStatusChanged(ctx, ev); err != nil {
		d.log.WithFields(logrus.Fields{
			logging.FieldTransactionID: ev.TransactionID,
			logging.FieldAccountID:     ev.AccountID,
			logging.FieldError:         err,
		}).Error("status change event failed")
		return err
	}
	d.mirror(ctx, "transaction.status_changed", ev)
	return nil
}

// mirror pushes an accepted event onto the external queue. The mirror is
// best effort: the balance mutation has already committed, so a queue
// failure is logged and the request proceeds.
func (d *Dispatcher) mirror(ctx context.Context, kind string, payload any) {
	if d.redis == nil {
		return
	}

	data, err := json.Marshal(map[string]any{"kind": kind, "event": payload})
	if err != nil {
		d.log.WithError(err).Error("failed to encode event for mirror queue")
		return
	}

	if err := d.redis.RPush(ctx, MirrorQueue, data).Err(); err != nil {
		d.log.WithError(err).Warn("failed to mirror event to redis queue")
	}
}
