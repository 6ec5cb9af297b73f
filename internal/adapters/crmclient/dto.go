package crmclient

import (
	"encoding/json"
	"time"
)

// propertySearchRequest — тело POST-запроса выборки объектов.
// Имена полей зафиксированы контрактом CRM (включая нетипичный isSync).
type propertySearchRequest struct {
	StatusID              int        `json:"StatusID"`
	IsSync                bool       `json:"isSync"`
	UpdateDateFromUTC     *time.Time `json:"UpdateDateFromUTC,omitempty"`
	SendDateFromUTC       *time.Time `json:"SendDateFromUTC,omitempty"`
	IncludeDeletedFromCrm bool       `json:"IncludeDeletedFromCrm"`
	Page                  int        `json:"Page,omitempty"`
}

// propertySearchResponse — конверт ответа CRM на выборку объектов.
// data держим сырыми, чтобы каждый объект сохранить в БД дословно.
type propertySearchResponse struct {
	Success  bool              `json:"success"`
	Total    int               `json:"total"`
	Data     []json.RawMessage `json:"data"`
	NextPage int               `json:"nextPage"`
	Error    string            `json:"error"`
}

type lookupResponse struct {
	Success bool          `json:"success"`
	Data    []lookupEntry `json:"data"`
	Error   string        `json:"error"`
}

type lookupEntry struct {
	ID   int    `json:"ID"`
	Name string `json:"Name"`
}
