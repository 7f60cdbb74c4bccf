package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/retailpos/sales-service/internal/inventory"
	"github.com/retailpos/sales-service/internal/inventory/dto"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/pkg/broker"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InventoryListener struct {
	consumer *broker.KafkaConsumer
	uc       inventory.UseCase
	logger   logger.ZapLogger
}

func NewInventoryListener(consumer *broker.KafkaConsumer, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type InventoryEvent struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Payload   InventoryPayload `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

type InventoryPayload struct {
	ProductID    string          `json:"product_id"`
	BatchID      *string         `json:"batch_id"`
	BatchNumber  string          `json:"batch_number"`
	MovementType string          `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	Reason       string          `json:"reason"`
	ReferenceID  string          `json:"reference_id"`
	ActorID      string          `json:"actor_id"`
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event InventoryEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "GoodsReceived":
		batch, err := l.uc.ReceiveGoods(ctx, &dto.ReceiveGoodsInput{
			ProductID:   event.Payload.ProductID,
			BatchNumber: event.Payload.BatchNumber,
			Quantity:    event.Payload.Quantity,
			UnitCost:    event.Payload.UnitCost,
			ExpiryDate:  event.Payload.ExpiryDate,
			ReferenceID: event.Payload.ReferenceID,
			Notes:       event.Payload.Reason,
			ActorID:     event.Payload.ActorID,
		})
		if err != nil {
			l.logger.Error("Failed to receive goods",
				zap.String("event_id", event.EventID),
				zap.String("product_id", event.Payload.ProductID),
				zap.Error(err),
			)
			return
		}
		l.logger.Info("Goods received from event",
			zap.String("event_id", event.EventID),
			zap.String("batch", batch.BatchNumber),
		)

	case "StockAdjusted":
		err := l.uc.PerformStockAdjustment(ctx, &dto.AdjustStockInput{
			ProductID:    event.Payload.ProductID,
			BatchID:      event.Payload.BatchID,
			MovementType: model.MovementType(event.Payload.MovementType),
			Quantity:     event.Payload.Quantity,
			Reason:       event.Payload.Reason,
			ReferenceID:  event.Payload.ReferenceID,
			ActorID:      event.Payload.ActorID,
		})
		if err != nil {
			l.logger.Error("Failed to adjust stock",
				zap.String("event_id", event.EventID),
				zap.String("product_id", event.Payload.ProductID),
				zap.Error(err),
			)
			return
		}
		l.logger.Info("Stock adjusted from event",
			zap.String("event_id", event.EventID),
			zap.String("product_id", event.Payload.ProductID),
		)
	}
}
