package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/retailpos/sales-service/internal/inventory"
	"github.com/retailpos/sales-service/internal/model"
	"github.com/retailpos/sales-service/internal/pkg/broker"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/sale"
	"github.com/retailpos/sales-service/internal/sale/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxCreateAttempts = 3
	retryDelay        = 100 * time.Millisecond
)

type SaleListener struct {
	consumer *broker.KafkaConsumer
	uc       sale.UseCase
	logger   logger.ZapLogger
}

func NewSaleListener(consumer *broker.KafkaConsumer, uc sale.UseCase, logger logger.ZapLogger) *SaleListener {
	return &SaleListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *SaleListener) Start(ctx context.Context) {
	l.logger.Info("Starting Sale Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Sale Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				// Don't log context canceled error as error
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

type SaleRequestedEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   SalePayload `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type SalePayload struct {
	CustomerID    *string           `json:"customer_id"`
	CashierID     string            `json:"cashier_id"`
	PaymentMethod string            `json:"payment_method"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	CartDiscount  decimal.Decimal   `json:"cart_discount"`
	Notes         string            `json:"notes"`
	Lines         []SaleLinePayload `json:"lines"`
}

type SaleLinePayload struct {
	ItemType    string           `json:"item_type"`
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal  `json:"discount"`
}

func (l *SaleListener) processMessage(ctx context.Context, value []byte) {
	var event SaleRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != "SaleRequested" {
		return
	}

	l.logger.Info("Processing SaleRequested event", zap.String("event_id", event.EventID))

	input := &dto.CreateSaleInput{
		CustomerID:    event.Payload.CustomerID,
		CashierID:     event.Payload.CashierID,
		PaymentMethod: event.Payload.PaymentMethod,
		AmountPaid:    event.Payload.AmountPaid,
		CartDiscount:  event.Payload.CartDiscount,
		Notes:         event.Payload.Notes,
	}
	for _, line := range event.Payload.Lines {
		input.Lines = append(input.Lines, dto.SaleLineInput{
			ItemType:    model.SaleItemType(line.ItemType),
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
		})
	}

	var s *model.Sale
	var err error
	for attempt := 1; ; attempt++ {
		s, err = l.uc.CreateSale(ctx, input)
		if err == nil || !inventory.IsRetryable(err) || attempt == maxCreateAttempts {
			break
		}
		l.logger.Warn("Sale request hit a stock conflict, retrying",
			zap.String("event_id", event.EventID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	if err != nil {
		l.logger.Error("Failed to process sale request",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("Sale created from event",
		zap.String("event_id", event.EventID),
		zap.String("sale", s.SaleNumber),
	)
}
