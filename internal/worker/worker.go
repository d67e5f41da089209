// Package worker runs the background consumer that mirrors order events
// into the relational archive.
package worker

import (
	"context"

	"go.uber.org/zap"

	"storefront-service/internal/archive"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// ArchiveWorker consumes order lifecycle events and applies them to the
// archive store. Events are applied at-least-once; the processed-events
// marker makes the writes effectively exactly-once.
type ArchiveWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *archive.Store
	logger       *zap.Logger
}

// NewArchiveWorker creates and wires an archive worker.
func NewArchiveWorker(consumer *broker.Consumer, store *archive.Store) *ArchiveWorker {
	w := &ArchiveWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderShipped(w.handleOrderShipped)

	return w
}

// Start runs the consume loop until ctx is cancelled.
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting archive worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer.
func (w *ArchiveWorker) Stop() error {
	w.logger.Info("Stopping archive worker")
	return w.consumer.Close()
}

func (w *ArchiveWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Skipping already processed event", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.store.InsertOrder(ctx, event); err != nil {
		return err
	}
	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return err
	}

	util.OrdersArchivedTotal.Inc()
	w.logger.Info("Order archived",
		zap.String("order_id", event.OrderID),
		zap.Float64("total", event.Total))
	return nil
}

func (w *ArchiveWorker) handleOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if err := w.store.UpdateStatus(ctx, event.OrderID, models.OrderStatusShipped); err != nil {
		return err
	}
	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return err
	}

	w.logger.Info("Order shipment archived", zap.String("order_id", event.OrderID))
	return nil
}
