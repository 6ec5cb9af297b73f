package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"crm-sync-service/internal/constants"
	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
	"crm-sync-service/internal/core/port/usecases_port"
)

// recordError — одна ошибка обработки записи для error_details сессии.
type recordError struct {
	CrmID int64  `json:"crm_id"`
	Error string `json:"error"`
}

type RunSyncUseCase struct {
	crmClient port.CrmClientPort
	storage   port.PropertyStoragePort
	sessions  port.SyncSessionStoragePort
	settings  port.SyncSettingsPort
	refresher port.IndexRefreshPort
	lookups   port.LookupCachePort

	batchSize   int
	batchPause  time.Duration
	runDeadline time.Duration

	// Защита от параллельных запусков: вторая синхронизация поверх идущей
	// порождала бы гонки за одни и те же строки.
	mu      sync.Mutex
	running bool
}

func NewRunSyncUseCase(
	crmClient port.CrmClientPort,
	storage port.PropertyStoragePort,
	sessions port.SyncSessionStoragePort,
	settings port.SyncSettingsPort,
	refresher port.IndexRefreshPort,
	lookups port.LookupCachePort,
	batchSize int,
	batchPause time.Duration,
	runDeadline time.Duration,
) (*RunSyncUseCase, error) {
	if crmClient == nil || storage == nil || sessions == nil || settings == nil {
		return nil, fmt.Errorf("run sync use case: dependencies cannot be nil")
	}
	if batchSize <= 0 {
		batchSize = constants.RateLimitRequests
	}
	if runDeadline <= 0 {
		runDeadline = time.Hour
	}
	return &RunSyncUseCase{
		crmClient:   crmClient,
		storage:     storage,
		sessions:    sessions,
		settings:    settings,
		refresher:   refresher,
		lookups:     lookups,
		batchSize:   batchSize,
		batchPause:  batchPause,
		runDeadline: runDeadline,
	}, nil
}

// RunSync - основной метод. Выполняет полную или инкрементальную синхронизацию
// и возвращает финализированную сессию.
func (uc *RunSyncUseCase) RunSync(ctx context.Context, params usecases_port.RunSyncParams) (*domain.SyncSession, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "RunSync",
		"kind":     string(params.Kind),
	})

	// Захватываем "замок" запуска
	uc.mu.Lock()
	if uc.running {
		uc.mu.Unlock()
		ucLogger.Warn("Sync rejected: another run is in progress", nil)
		return nil, domain.ErrSyncAlreadyRunning
	}
	uc.running = true
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		uc.running = false
		uc.mu.Unlock()
	}()

	// Дедлайн на весь прогон: зависший CRM не держит замок вечно
	ctx, cancel := context.WithTimeout(ctx, uc.runDeadline)
	defer cancel()

	// Инкрементальный запуск без базовой точки не определён — откатываемся к full
	kind := params.Kind
	if kind == domain.SyncKindIncremental && params.LastSyncDate == nil {
		ucLogger.Warn("Incremental sync requested without baseline, falling back to full", nil)
		kind = domain.SyncKindFull
	}

	session := &domain.SyncSession{
		Kind:      kind,
		Status:    domain.SessionStatusPending,
		StartedAt: time.Now().UTC(),
	}
	if kind == domain.SyncKindIncremental {
		session.FromDate = params.LastSyncDate
	}

	sessionID, err := uc.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("could not create sync session: %w", err)
	}
	session.ID = sessionID
	ucLogger = ucLogger.WithFields(port.Fields{"session_id": sessionID.String()})

	// Ротация токена перед запуском
	if params.AuthToken != "" {
		if err := uc.settings.SaveSettings(ctx, &domain.SyncSettings{AuthToken: params.AuthToken}); err != nil {
			return uc.finalizeFailed(ctx, session, fmt.Errorf("could not save auth token: %w", err), nil)
		}
	}

	// Провал конфигурации тоже оставляет след в журнале сессий
	stored, err := uc.settings.GetSettings(ctx)
	if err != nil {
		return uc.finalizeFailed(ctx, session, fmt.Errorf("could not load sync settings: %w", err), nil)
	}
	if stored == nil || stored.BaseURL == "" || stored.AuthToken == "" {
		return uc.finalizeFailed(ctx, session, &domain.ConfigError{Reason: "sync settings are not configured"}, nil)
	}

	if !uc.crmClient.TestConnection(ctx) {
		ucLogger.Error("CRM connection test failed", nil, nil)
		return uc.finalizeFailed(ctx, session, fmt.Errorf("CRM connection test failed"), nil)
	}

	if err := uc.sessions.MarkSyncing(ctx, sessionID); err != nil {
		ucLogger.Error("Failed to mark session as syncing", err, nil)
		return uc.finalizeFailed(ctx, session, fmt.Errorf("could not mark session as syncing: %w", err), nil)
	}
	session.Status = domain.SessionStatusSyncing

	// --- Выгрузка из CRM ---
	filter := domain.PropertyFilter{
		StatusID: domain.PropertyStatusActive,
		IsSync:   true,
		Detailed: true,
	}
	if kind == domain.SyncKindIncremental {
		filter.UpdateDateFromUTC = params.LastSyncDate
	}

	properties, total, err := uc.crmClient.FetchProperties(ctx, filter)
	if err != nil {
		ucLogger.Error("Failed to fetch properties from CRM", err, nil)
		return uc.finalizeFailed(ctx, session, fmt.Errorf("fetch properties: %w", err), nil)
	}
	ucLogger.Info("Fetched active properties", port.Fields{"count": len(properties), "total": total})

	if params.IncludeDeleted {
		deletedFilter := filter
		deletedFilter.StatusID = domain.PropertyStatusDeleted
		deletedFilter.IncludeDeleted = true

		deleted, _, err := uc.crmClient.FetchProperties(ctx, deletedFilter)
		if err != nil {
			// Недоезд удалённых не роняет прогон: активные уже на руках
			ucLogger.Warn("Failed to fetch deleted properties, continuing without them", port.Fields{"error": err.Error()})
		} else {
			properties = append(properties, deleted...)
		}
	}

	session.Stats.Total = len(properties)

	// --- Обработка батчами ---
	recordErrors := uc.processBatches(ctx, properties, &session.Stats)

	return uc.finalize(ctx, ucLogger, session, recordErrors)
}

// processBatches обрабатывает записи батчами: внутри батча записи идут
// конкурентно, батчи между собой — строго последовательно, с паузой.
func (uc *RunSyncUseCase) processBatches(ctx context.Context, properties []domain.UpstreamProperty, stats *domain.SyncStats) []recordError {
	logger := contextkeys.LoggerFromContext(ctx)

	var statsMu sync.Mutex
	var recordErrors []recordError

	for start := 0; start < len(properties); start += uc.batchSize {
		if ctx.Err() != nil {
			// Дедлайн или отмена: уже обработанные записи остаются,
			// остальное добьёт следующий запуск
			logger.Warn("Sync run cancelled mid-way", port.Fields{"processed": start, "total": len(properties)})
			break
		}

		end := start + uc.batchSize
		if end > len(properties) {
			end = len(properties)
		}
		batch := properties[start:end]

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(prop *domain.UpstreamProperty) {
				defer wg.Done()

				outcome, err := uc.processOne(ctx, prop)

				statsMu.Lock()
				defer statsMu.Unlock()
				if err != nil {
					stats.Failed++
					recordErrors = append(recordErrors, recordError{CrmID: prop.PropertyID, Error: err.Error()})
					return
				}
				switch outcome {
				case outcomeInserted:
					stats.New++
				case outcomeUpdated:
					stats.Updated++
				case outcomeDeleted:
					stats.Deleted++
				}
			}(&batch[i])
		}
		wg.Wait()

		if end < len(properties) && uc.batchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(uc.batchPause):
			}
		}
	}

	return recordErrors
}

type upsertOutcome int

const (
	outcomeSkipped upsertOutcome = iota
	outcomeInserted
	outcomeUpdated
	outcomeDeleted
)

// processOne решает insert/update/skip для одной записи и выполняет upsert.
func (uc *RunSyncUseCase) processOne(ctx context.Context, prop *domain.UpstreamProperty) (upsertOutcome, error) {
	info, err := uc.storage.GetSyncInfo(ctx, prop.PropertyID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("get sync info: %w", err)
	}

	if info != nil && !prop.UpdateDate.After(info.UpdateDate) {
		// Локальная запись не старее пришедшей — пропуск
		return outcomeSkipped, nil
	}

	result, err := uc.storage.UpsertFromUpstream(ctx, prop)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("upsert: %w", err)
	}

	if result.Created {
		return outcomeInserted, nil
	}
	if prop.StatusID == domain.PropertyStatusDeleted {
		return outcomeDeleted, nil
	}
	return outcomeUpdated, nil
}

// finalize закрывает сессию и выполняет пост-шаги (обновление индекса, прогрев справочников).
func (uc *RunSyncUseCase) finalize(ctx context.Context, logger port.LoggerPort, session *domain.SyncSession, recordErrors []recordError) (*domain.SyncSession, error) {
	now := time.Now().UTC()
	session.CompletedAt = &now
	session.DurationSeconds = now.Sub(session.StartedAt).Seconds()

	// Прогон провален, только если были ошибки и НИ ОДНА запись не прошла
	if len(recordErrors) > 0 && session.Stats.New+session.Stats.Updated == 0 {
		session.Status = domain.SessionStatusFailed
		msg := fmt.Sprintf("all %d processed records failed", len(recordErrors))
		session.ErrorMessage = &msg
	} else {
		session.Status = domain.SessionStatusCompleted
	}

	if len(recordErrors) > 0 {
		details, err := json.Marshal(recordErrors)
		if err == nil {
			session.ErrorDetails = details
		}
	}

	// Финализация идёт на фоновом контексте: дедлайн прогона не должен
	// помешать записать итог в журнал
	finalizeCtx, cancel := context.WithTimeout(contextkeys.ContextWithLogger(context.Background(), logger), 15*time.Second)
	defer cancel()

	if err := uc.sessions.Finalize(finalizeCtx, session); err != nil {
		logger.Error("Failed to finalize sync session", err, nil)
		return session, fmt.Errorf("could not finalize sync session: %w", err)
	}

	logger.Info("Sync session finalized", port.Fields{
		"status":  string(session.Status),
		"total":   session.Stats.Total,
		"new":     session.Stats.New,
		"updated": session.Stats.Updated,
		"deleted": session.Stats.Deleted,
		"failed":  session.Stats.Failed,
	})

	if session.Status == domain.SessionStatusCompleted {
		uc.notifyIndexRefresh(finalizeCtx, logger, session)

		if session.Kind == domain.SyncKindFull && uc.lookups != nil {
			go uc.warmLookups(contextkeys.ContextWithLogger(context.Background(), logger))
		}
	}

	return session, nil
}

// finalizeFailed закрывает сессию как провальную. Исходная причина
// оборачивается в возвращаемую ошибку, чтобы вызывающий мог различать
// типизированные провалы (например, ConfigError).
func (uc *RunSyncUseCase) finalizeFailed(ctx context.Context, session *domain.SyncSession, cause error, details json.RawMessage) (*domain.SyncSession, error) {
	logger := contextkeys.LoggerFromContext(ctx)

	now := time.Now().UTC()
	reason := cause.Error()
	session.Status = domain.SessionStatusFailed
	session.CompletedAt = &now
	session.DurationSeconds = now.Sub(session.StartedAt).Seconds()
	session.ErrorMessage = &reason
	session.ErrorDetails = details

	finalizeCtx, cancel := context.WithTimeout(contextkeys.ContextWithLogger(context.Background(), logger), 15*time.Second)
	defer cancel()

	if err := uc.sessions.Finalize(finalizeCtx, session); err != nil {
		logger.Error("Failed to finalize failed sync session", err, nil)
	}

	return session, fmt.Errorf("sync failed: %w", cause)
}

// notifyIndexRefresh - fire-and-forget уведомление поисковой витрины.
func (uc *RunSyncUseCase) notifyIndexRefresh(ctx context.Context, logger port.LoggerPort, session *domain.SyncSession) {
	if uc.refresher == nil {
		return
	}
	if err := uc.refresher.PublishRefresh(ctx, session.ID, session.Stats); err != nil {
		logger.Warn("Index refresh publish failed", port.Fields{"error": err.Error()})
	}
}

// warmLookups прогревает кэш справочников после полной синхронизации.
func (uc *RunSyncUseCase) warmLookups(ctx context.Context) {
	logger := contextkeys.LoggerFromContext(ctx)

	all, err := uc.crmClient.FetchAllLookups(ctx, constants.DefaultLanguageID)
	if err != nil {
		logger.Warn("Lookup warm-up fetch failed", port.Fields{"error": err.Error()})
		return
	}

	for lookupType, entries := range all {
		if err := uc.lookups.Set(ctx, lookupType, constants.DefaultLanguageID, entries); err != nil {
			logger.Warn("Lookup warm-up cache write failed", port.Fields{"lookup_type": lookupType, "error": err.Error()})
		}
	}
}
