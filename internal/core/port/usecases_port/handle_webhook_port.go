package usecases_port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// WebhookResult — итог обработки одного push-события.
type WebhookResult struct {
	Event   string
	Applied bool
	// Reason пояснение для no-op случаев (неизвестный объект и т.п.).
	Reason  string
	Session *domain.SyncSession
}

// HandleWebhookUseCase — обработка одного push-уведомления от CRM.
type HandleWebhookUseCase interface {
	HandleEvent(ctx context.Context, event *domain.WebhookEvent) (*WebhookResult, error)
}
