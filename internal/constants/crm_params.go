package constants

import "time"

// Эндпоинты CRM API (относительно базового URL из настроек).
const (
	EndpointConnectionTest = "/api/v1/connection/test"
	EndpointProperties     = "/api/v1/properties/search"
	EndpointPropertyByID   = "/api/v1/properties" // + /{id}
	EndpointLookup         = "/api/v1/lookups"    // + /{type}
)

// Заголовки CRM API.
const (
	HeaderAuthToken     = "X-Auth-Token"
	HeaderDetailLevel   = "X-Detail-Level"
	HeaderLanguage      = "X-Language-ID"
	HeaderWebhookSecret = "X-Webhook-Secret"
)

// Уровни детализации выборки объектов.
const (
	DetailLevelBasic = "basic"
	DetailLevelFull  = "full"
)

// Наблюдаемый лимит CRM: 10 запросов в минуту.
const (
	RateLimitRequests = 10
	RateLimitWindow   = 60 * time.Second
)

// Пауза между запросами справочников, чтобы не выбирать лимит пачкой.
const LookupFetchDelay = 500 * time.Millisecond

// Типы справочников CRM.
var LookupTypes = []string{
	"categories",
	"subcategories",
	"purposes",
	"landmark_types",
	"parking_types",
	"basement_types",
}

// Язык по умолчанию для локализованных характеристик.
const DefaultLanguageID = 1
