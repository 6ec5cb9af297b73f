package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// IndexRefreshDTO - для сообщения в очередь обновления поискового индекса
type IndexRefreshDTO struct {
	SessionID uuid.UUID      `json:"session_id"`
	Stats     map[string]int `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

type IndexRefreshAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

func NewIndexRefreshAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*IndexRefreshAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &IndexRefreshAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

func (a *IndexRefreshAdapter) PublishRefresh(ctx context.Context, sessionID uuid.UUID, stats domain.SyncStats) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "IndexRefreshAdapter",
		"routing_key": a.routingKey,
		"session_id":  sessionID,
	})

	dto := IndexRefreshDTO{
		SessionID: sessionID,
		Stats: map[string]int{
			"total":   stats.Total,
			"new":     stats.New,
			"updated": stats.Updated,
			"deleted": stats.Deleted,
			"failed":  stats.Failed,
		},
		Timestamp: time.Now().UTC(),
	}

	body, _ := json.Marshal(dto)

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Для сохранения сообщений при перезапуске брокера
		Timestamp:    time.Now(),
		Headers:      make(amqp.Table),
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	// Таймаут на публикацию, если контекст его не предоставляет
	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := a.producer.Publish(publishCtx, a.routingKey, msg)
	if err != nil {
		adapterLogger.Error("Failed to publish index refresh", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish index refresh for session %s: %w", sessionID, err)
	}

	adapterLogger.Info("Successfully published index refresh", nil)
	return nil
}
