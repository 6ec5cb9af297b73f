package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crm-sync-service/internal/constants"
	"crm-sync-service/internal/contextkeys"
	"crm-sync-service/internal/core/domain"
	"crm-sync-service/internal/core/port"
)

// Client отвечает за все обращения к CRM API.
// Реквизиты (базовый URL, токен) читаются из настроек на каждый вызов:
// токен, ротированный через POST /sync, подхватывается без рестарта.
// Клиент никогда не ретраит — политика повторов у оркестратора.
type Client struct {
	settings   port.SyncSettingsPort
	limiter    *FixedWindowLimiter
	httpClient *http.Client
}

// NewClient - конструктор. Лимитер внедряется снаружи, чтобы несколько
// экземпляров клиента в тестах не делили скрытое состояние.
func NewClient(settings port.SyncSettingsPort, limiter *FixedWindowLimiter) (*Client, error) {
	if settings == nil {
		return nil, fmt.Errorf("crmclient: settings port cannot be nil")
	}
	if limiter == nil {
		return nil, fmt.Errorf("crmclient: rate limiter cannot be nil")
	}
	return &Client{
		settings: settings,
		limiter:  limiter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// loadSettings читает и проверяет активные реквизиты CRM.
func (c *Client) loadSettings(ctx context.Context) (*domain.SyncSettings, error) {
	settings, err := c.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync settings: %w", err)
	}
	if settings == nil || settings.BaseURL == "" {
		return nil, &domain.ConfigError{Reason: "CRM base URL is not configured"}
	}
	if settings.AuthToken == "" {
		return nil, &domain.ConfigError{Reason: "CRM auth token is not configured"}
	}
	return settings, nil
}

// doRequest - внутренний хелпер для выполнения запросов.
// Каждый путь вызова проходит через лимитер ДО выхода в сеть.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	settings, err := c.loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: method + " " + path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, settings.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(constants.HeaderAuthToken, settings.AuthToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Заголовок для трассировки
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

// TestConnection выполняет лёгкий аутентифицированный запрос перед синхронизацией.
// Возвращает false при любом сбое — транспортном, auth или конфигурационном.
func (c *Client) TestConnection(ctx context.Context) bool {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component": "CrmClient",
		"method":    "TestConnection",
	})

	resp, err := c.doRequest(ctx, http.MethodGet, constants.EndpointConnectionTest, nil, nil)
	if err != nil {
		clientLogger.Warn("Connection test failed", port.Fields{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clientLogger.Warn("Connection test returned non-success status", port.Fields{"status_code": resp.StatusCode})
		return false
	}

	clientLogger.Debug("Connection test passed", nil)
	return true
}

// FetchProperties постранично выгружает объекты по фильтру и возвращает
// все страницы одним срезом плюс total из конверта CRM.
func (c *Client) FetchProperties(ctx context.Context, filter domain.PropertyFilter) ([]domain.UpstreamProperty, int, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component": "CrmClient",
		"method":    "FetchProperties",
		"status_id": filter.StatusID,
	})

	detailLevel := constants.DetailLevelBasic
	if filter.Detailed {
		detailLevel = constants.DetailLevelFull
	}
	headers := map[string]string{constants.HeaderDetailLevel: detailLevel}

	var all []domain.UpstreamProperty
	total := 0
	page := 1

	for {
		reqBody := propertySearchRequest{
			StatusID:              filter.StatusID,
			IsSync:                filter.IsSync,
			UpdateDateFromUTC:     filter.UpdateDateFromUTC,
			SendDateFromUTC:       filter.SendDateFromUTC,
			IncludeDeletedFromCrm: filter.IncludeDeleted,
			Page:                  page,
		}

		payload, err := json.Marshal(reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal search request: %w", err)
		}

		clientLogger.Debug("Fetching properties page", port.Fields{"page": page})

		resp, err := c.doRequest(ctx, http.MethodPost, constants.EndpointProperties, bytes.NewReader(payload), headers)
		if err != nil {
			return nil, 0, err
		}

		envelope, err := decodeSearchResponse(resp)
		if err != nil {
			clientLogger.Error("Failed to fetch properties page", err, port.Fields{"page": page})
			return nil, 0, err
		}

		total = envelope.Total

		for _, raw := range envelope.Data {
			prop, err := toDomainProperty(raw)
			if err != nil {
				// Битая запись в ответе CRM не валит всю страницу.
				clientLogger.Warn("Skipping malformed property in CRM response", port.Fields{
					"page":  page,
					"error": err.Error(),
				})
				continue
			}
			all = append(all, *prop)
		}

		if envelope.NextPage == 0 || envelope.NextPage <= page {
			break
		}
		page = envelope.NextPage
	}

	clientLogger.Info("Fetched properties from CRM", port.Fields{
		"fetched": len(all),
		"total":   total,
	})
	return all, total, nil
}

// decodeSearchResponse разбирает конверт ответа и переводит отказ CRM в типизированную ошибку.
func decodeSearchResponse(resp *http.Response) (*propertySearchResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	var envelope propertySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode CRM response: %w", err)
	}

	if !envelope.Success {
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    envelope.Error,
		}
	}

	return &envelope, nil
}

// FetchPropertyByID возвращает один объект или nil, если CRM его не знает (404).
func (c *Client) FetchPropertyByID(ctx context.Context, id int64) (*domain.UpstreamProperty, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component":   "CrmClient",
		"method":      "FetchPropertyByID",
		"property_id": id,
	})

	path := fmt.Sprintf("%s/%d", constants.EndpointPropertyByID, id)
	headers := map[string]string{constants.HeaderDetailLevel: constants.DetailLevelFull}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		clientLogger.Debug("Property not found in CRM", nil)
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "read property body", Err: err}
	}

	prop, err := toDomainProperty(raw)
	if err != nil {
		clientLogger.Error("Failed to map property response", err, nil)
		return nil, err
	}
	return prop, nil
}

// FetchLookup выгружает один справочник на заданном языке.
func (c *Client) FetchLookup(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component":   "CrmClient",
		"method":      "FetchLookup",
		"lookup_type": lookupType,
	})

	path := fmt.Sprintf("%s/%s", constants.EndpointLookup, lookupType)
	headers := map[string]string{constants.HeaderLanguage: fmt.Sprintf("%d", languageID)}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &domain.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	var envelope lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if !envelope.Success {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	clientLogger.Debug("Fetched lookup from CRM", port.Fields{"entries": len(envelope.Data)})
	return toDomainLookupEntries(envelope.Data), nil
}

// FetchAllLookups выгружает все справочники с намеренной паузой между
// запросами, чтобы не выбирать лимит CRM пачкой.
func (c *Client) FetchAllLookups(ctx context.Context, languageID int) (map[string][]domain.LookupEntry, error) {
	result := make(map[string][]domain.LookupEntry, len(constants.LookupTypes))

	for i, lookupType := range constants.LookupTypes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(constants.LookupFetchDelay):
			}
		}

		entries, err := c.FetchLookup(ctx, lookupType, languageID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch lookup %q: %w", lookupType, err)
		}
		result[lookupType] = entries
	}

	return result, nil
}
