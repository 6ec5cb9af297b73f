package domain

// ValidateUpstreamProperty проверяет запись перед записью в БД.
// Возвращает ошибку только по жёстким требованиям (идентификатор, цена);
// отсутствие заголовка — предупреждение: качество данных в CRM плавает,
// и отбрасывать из-за этого валидный объект нельзя.
func ValidateUpstreamProperty(p *UpstreamProperty) ([]string, error) {
	if p.PropertyID <= 0 {
		return nil, &ValidationError{Field: "PropertyID", Reason: "upstream identifier is required"}
	}
	if p.Price == nil {
		// Ноль — валидная цена, nil — нет.
		return nil, &ValidationError{Field: "Price", Reason: "price is required (zero is valid, null is not)"}
	}

	var warnings []string
	if !p.HasTitle() {
		warnings = append(warnings, "property has no localized title in any language")
	}
	return warnings, nil
}
