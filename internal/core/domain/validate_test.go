package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProperty() *UpstreamProperty {
	price := 150000.0
	return &UpstreamProperty{
		PropertyID: 42,
		StatusID:   PropertyStatusActive,
		Price:      &price,
		UpdateDate: time.Now().UTC(),
		Characteristics: []UpstreamCharacteristic{
			{Key: CharacteristicTitle, Value: "Двухкомнатная квартира", LanguageID: 1},
		},
	}
}

func TestValidateUpstreamProperty_Valid(t *testing.T) {
	warnings, err := ValidateUpstreamProperty(validProperty())
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateUpstreamProperty_InvalidID(t *testing.T) {
	prop := validProperty()
	prop.PropertyID = 0

	_, err := ValidateUpstreamProperty(prop)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "PropertyID", validationErr.Field)
}

func TestValidateUpstreamProperty_MissingPrice(t *testing.T) {
	prop := validProperty()
	prop.Price = nil

	_, err := ValidateUpstreamProperty(prop)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Price", validationErr.Field)
}

func TestValidateUpstreamProperty_ZeroPriceIsValid(t *testing.T) {
	prop := validProperty()
	zero := 0.0
	prop.Price = &zero

	warnings, err := ValidateUpstreamProperty(prop)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidateUpstreamProperty_MissingTitleIsWarning(t *testing.T) {
	prop := validProperty()
	prop.Characteristics = nil

	warnings, err := ValidateUpstreamProperty(prop)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestUpstreamProperty_Title(t *testing.T) {
	prop := validProperty()
	prop.Characteristics = append(prop.Characteristics, UpstreamCharacteristic{
		Key: CharacteristicTitle, Value: "Two-room apartment", LanguageID: 2,
	})

	assert.Equal(t, "Двухкомнатная квартира", prop.Title(1))
	assert.Equal(t, "Two-room apartment", prop.Title(2))
	assert.Equal(t, "", prop.Title(3))
	assert.True(t, prop.HasTitle())
}
