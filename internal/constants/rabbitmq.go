package constants

// Обменник и ключи маршрутизации для событий синхронизации.
const (
	SyncExchange = "sync_exchange"

	RoutingKeyIndexRefresh = "search.index.refresh"
)
