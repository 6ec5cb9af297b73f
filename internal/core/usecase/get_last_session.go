package usecase

import (
	"context"
	"fmt"

	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
)

type GetLastSessionUseCase struct {
	sessions port.SyncSessionStoragePort
}

func NewGetLastSessionUseCase(sessions port.SyncSessionStoragePort) (*GetLastSessionUseCase, error) {
	if sessions == nil {
		return nil, fmt.Errorf("get last session use case: sessions storage cannot be nil")
	}
	return &GetLastSessionUseCase{sessions: sessions}, nil
}

// GetLastSession возвращает последнюю сессию или nil, если журнал пуст.
func (uc *GetLastSessionUseCase) GetLastSession(ctx context.Context) (*domain.SyncSession, error) {
	session, err := uc.sessions.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get latest sync session: %w", err)
	}
	return session, nil
}
