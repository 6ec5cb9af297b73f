package port

import (
	"context"

	"crm-sync-service/internal/core/domain"
)

// CrmClientPort — контракт клиента CRM API.
// Клиент не ретраит запросы: политика повторов — зона ответственности оркестратора.
type CrmClientPort interface {
	// TestConnection выполняет лёгкий аутентифицированный запрос.
	// Возвращает false (никогда не ошибку) при любом транспортном или auth-сбое.
	TestConnection(ctx context.Context) bool

	// FetchProperties постранично выгружает объекты по фильтру.
	// Возвращает все страницы одним срезом плюс total из конверта ответа.
	FetchProperties(ctx context.Context, filter domain.PropertyFilter) ([]domain.UpstreamProperty, int, error)

	// FetchPropertyByID возвращает один объект или nil, если CRM его не знает.
	FetchPropertyByID(ctx context.Context, id int64) (*domain.UpstreamProperty, error)

	// FetchLookup выгружает один справочник на заданном языке.
	FetchLookup(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error)

	// FetchAllLookups выгружает все справочники с паузой между запросами,
	// чтобы не бить пачкой по лимиту CRM.
	FetchAllLookups(ctx context.Context, languageID int) (map[string][]domain.LookupEntry, error)
}
