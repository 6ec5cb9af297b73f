package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы объекта в CRM. Удаление в CRM моделируется как смена статуса,
// локально записи никогда не удаляются физически.
const (
	PropertyStatusActive  = 1
	PropertyStatusDeleted = 2
)

// UpstreamProperty — представление объекта недвижимости, как его отдаёт CRM.
// Живёт только на время обработки: получили, преобразовали, сохранили.
type UpstreamProperty struct {
	PropertyID    int64 `json:"PropertyID"`
	CategoryID    int   `json:"CategoryID"`
	SubCategoryID int   `json:"SubCategoryID"`
	PurposeID     int   `json:"PurposeID"`
	StatusID      int   `json:"StatusID"`

	// Price обязателен: ноль — валидная цена, nil — брак данных.
	Price   *float64 `json:"Price"`
	Area    *float64 `json:"Area"`
	LotArea *float64 `json:"LotArea"`

	Latitude   *float64 `json:"Latitude"`
	Longitude  *float64 `json:"Longitude"`
	PostalCode string   `json:"PostalCode"`

	Images          []UpstreamImage          `json:"Images"`
	Characteristics []UpstreamCharacteristic `json:"Characteristics"`
	Partner         *UpstreamPartner         `json:"Partner"`
	Distances       []UpstreamDistance       `json:"Distances"`
	Parkings        []UpstreamParking        `json:"Parkings"`
	Basements       []UpstreamBasement       `json:"Basements"`
	Flags           UpstreamFlags            `json:"Flags"`

	SendDate time.Time `json:"SendDate"`
	// UpdateDate — авторитетная отметка "последнее изменение в CRM".
	// По ней работает инкрементальная синхронизация и правило "новее — побеждает".
	UpdateDate time.Time `json:"UpdateDate"`

	// Raw — исходный JSON объекта целиком, сохраняется в БД как есть
	// для повторной обработки и отладки.
	Raw json.RawMessage `json:"-"`
}

type UpstreamImage struct {
	SortOrder    int    `json:"SortOrder"`
	URL          string `json:"Url"`
	ThumbnailURL string `json:"ThumbnailUrl"`
}

// UpstreamCharacteristic — пара ключ/значение с кодом языка.
// Через характеристики CRM передаёт локализованные заголовок, описание и текст объявления.
type UpstreamCharacteristic struct {
	Key        string `json:"Key"`
	Value      string `json:"Value"`
	LanguageID int    `json:"LanguageID"`
}

// Ключи характеристик, которые несут локализованный текст объявления.
const (
	CharacteristicTitle       = "Title"
	CharacteristicDescription = "Description"
	CharacteristicAdText      = "AdText"
)

type UpstreamPartner struct {
	PartnerID int64  `json:"PartnerID"`
	Name      string `json:"Name"`
	Email     string `json:"Email"`
	Phone     string `json:"Phone"`
}

type UpstreamDistance struct {
	LandmarkType string  `json:"LandmarkType"`
	Meters       float64 `json:"Meters"`
}

type UpstreamParking struct {
	ParkingType string   `json:"ParkingType"`
	Count       int      `json:"Count"`
	Area        *float64 `json:"Area"`
}

type UpstreamBasement struct {
	BasementType string   `json:"BasementType"`
	Area         *float64 `json:"Area"`
}

type UpstreamFlags struct {
	IsExclusive  bool `json:"IsExclusive"`
	IsFeatured   bool `json:"IsFeatured"`
	HasElevator  bool `json:"HasElevator"`
	IsFurnished  bool `json:"IsFurnished"`
	IsNegotiable bool `json:"IsNegotiable"`
}

// Title возвращает локализованный заголовок объявления (пустая строка, если его нет).
func (p *UpstreamProperty) Title(languageID int) string {
	for _, c := range p.Characteristics {
		if c.Key == CharacteristicTitle && c.LanguageID == languageID {
			return c.Value
		}
	}
	return ""
}

// HasTitle — есть ли заголовок хотя бы на одном языке.
func (p *UpstreamProperty) HasTitle() bool {
	for _, c := range p.Characteristics {
		if c.Key == CharacteristicTitle && c.Value != "" {
			return true
		}
	}
	return false
}

// LocalProperty — нормализованная локальная запись объекта.
// Локальный ID стабилен на всё время жизни записи; CrmID — натуральный ключ для upsert.
type LocalProperty struct {
	ID    uuid.UUID
	CrmID int64

	CategoryID    int
	SubCategoryID int
	PurposeID     int
	StatusID      int

	Price   float64
	Area    *float64
	LotArea *float64

	Latitude   *float64
	Longitude  *float64
	Geohash    string
	PostalCode string

	RawPayload json.RawMessage

	SendDate     time.Time
	UpdateDate   time.Time
	LastSyncedAt time.Time
	CreatedAt    time.Time
}

// PropertySyncInfo — минимальный срез локальной записи, нужный оркестратору
// для решения insert/update/skip и ресиверу вебхуков для смены статуса.
type PropertySyncInfo struct {
	LocalID    uuid.UUID
	CrmID      int64
	StatusID   int
	UpdateDate time.Time
	RawPayload json.RawMessage
}

// UpsertResult — итог одного upsert: локальный ID, признак вставки
// и предупреждения по дочерним коллекциям (их провал не фатален).
type UpsertResult struct {
	LocalID       uuid.UUID
	Created       bool
	ChildWarnings []string
}
