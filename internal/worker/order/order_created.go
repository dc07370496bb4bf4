package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/messaging"
	"github.com/homefleet/shoplist/internal/service/intake"
	listsvc "github.com/homefleet/shoplist/internal/service/list"
	"github.com/homefleet/shoplist/internal/worker"
)

var workerTracer = otel.Tracer("github.com/homefleet/shoplist/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderCreatedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderCreatedHandler builds a handler that rewarms the cached active
// list whenever a new order lands on the shared worksheet.
func NewOrderCreatedHandler(logger *zap.Logger, cfg config.Config, list *listsvc.Service) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event intake.OrderCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order created", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		if err := list.Refresh(ctx); err != nil {
			logger.Warn("active list refresh failed", zap.Int64("id", event.ID), zap.Error(err))
			span.RecordError(err)
			return err
		}

		logger.Info("order created event processed",
			zap.Int64("id", event.ID),
			zap.String("product", event.Product),
			zap.String("source", event.Source),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
