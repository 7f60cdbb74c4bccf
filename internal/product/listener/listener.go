package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/retailpos/sales-service/internal/pkg/broker"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/product"
	"github.com/retailpos/sales-service/internal/product/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogListener applies product upserts published by the back office.
type CatalogListener struct {
	consumer *broker.KafkaConsumer
	uc       product.UseCase
	logger   logger.ZapLogger
}

func NewCatalogListener(consumer *broker.KafkaConsumer, uc product.UseCase, logger logger.ZapLogger) *CatalogListener {
	return &CatalogListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *CatalogListener) Start(ctx context.Context) {
	l.logger.Info("Starting Catalog Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Catalog Kafka Listener")
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

type CatalogEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Payload   ProductPayload `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type ProductPayload struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Taxable      bool            `json:"taxable"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	InitialStock decimal.Decimal `json:"initial_stock"`
	IsActive     bool            `json:"is_active"`
}

func (l *CatalogListener) processMessage(ctx context.Context, value []byte) {
	var event CatalogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "ProductCreated":
		p, err := l.uc.CreateProduct(ctx, &dto.CreateProductInput{
			SKU:          event.Payload.SKU,
			Barcode:      event.Payload.Barcode,
			Name:         event.Payload.Name,
			Description:  event.Payload.Description,
			CostPrice:    event.Payload.CostPrice,
			SellPrice:    event.Payload.SellPrice,
			TaxRate:      event.Payload.TaxRate,
			Taxable:      event.Payload.Taxable,
			ReorderLevel: event.Payload.ReorderLevel,
			InitialStock: event.Payload.InitialStock,
		})
		if err != nil {
			l.logger.Error("Failed to create product",
				zap.String("event_id", event.EventID),
				zap.String("sku", event.Payload.SKU),
				zap.Error(err),
			)
			return
		}
		l.logger.Info("Product created from event",
			zap.String("event_id", event.EventID),
			zap.String("product_id", p.ID),
		)

	case "ProductUpdated":
		_, err := l.uc.UpdateProduct(ctx, &dto.UpdateProductInput{
			ID:           event.Payload.ID,
			SKU:          event.Payload.SKU,
			Barcode:      event.Payload.Barcode,
			Name:         event.Payload.Name,
			Description:  event.Payload.Description,
			CostPrice:    event.Payload.CostPrice,
			SellPrice:    event.Payload.SellPrice,
			TaxRate:      event.Payload.TaxRate,
			Taxable:      event.Payload.Taxable,
			ReorderLevel: event.Payload.ReorderLevel,
			IsActive:     event.Payload.IsActive,
		})
		if err != nil {
			l.logger.Error("Failed to update product",
				zap.String("event_id", event.EventID),
				zap.String("product_id", event.Payload.ID),
				zap.Error(err),
			)
			return
		}
		l.logger.Info("Product updated from event",
			zap.String("event_id", event.EventID),
			zap.String("product_id", event.Payload.ID),
		)

	case "ProductDeactivated":
		if err := l.uc.DeactivateProduct(ctx, event.Payload.ID); err != nil {
			l.logger.Error("Failed to deactivate product",
				zap.String("event_id", event.EventID),
				zap.String("product_id", event.Payload.ID),
				zap.Error(err),
			)
			return
		}
		l.logger.Info("Product deactivated from event",
			zap.String("event_id", event.EventID),
			zap.String("product_id", event.Payload.ID),
		)
	}
}
