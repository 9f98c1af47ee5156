package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhilgenberg/go-e-report/models"
)

func TestParseUnitPrice(t *testing.T) {
	for _, raw := range []string{"0,30", "0.30", " 0.3 "} {
		price, err := ParseUnitPrice(raw)
		require.NoError(t, err, raw)
		assert.True(t, decimal.RequireFromString("0.3").Equal(price), raw)
	}

	for _, raw := range []string{"", "abc", "-0,10"} {
		_, err := ParseUnitPrice(raw)
		require.Error(t, err, raw)
		assert.Equal(t, models.KindConfiguration, models.KindOf(err), raw)
	}
}

func TestSummarizeSingleDay(t *testing.T) {
	price, err := ParseUnitPrice("0,30")
	require.NoError(t, err)

	items := BuildLineItems([]models.DailyUsage{
		{Date: at(1, 0), EnergyKWh: decimal.RequireFromString("12.50")},
	}, price)
	summary := Summarize(items, price)

	require.Len(t, items, 1)
	assert.Equal(t, "3.75", FormatAmount(items[0].Cost))
	assert.Equal(t, "12.50", FormatAmount(summary.TotalEnergy))
	assert.Equal(t, "0.30", FormatAmount(summary.UnitPrice))
	assert.Equal(t, "3.75", FormatAmount(summary.TotalCost))
}

func TestSummarizeUsesUnroundedValues(t *testing.T) {
	price := decimal.RequireFromString("0.333")
	items := BuildLineItems([]models.DailyUsage{
		{Date: at(1, 0), EnergyKWh: decimal.RequireFromString("1.005")},
		{Date: at(2, 0), EnergyKWh: decimal.RequireFromString("1.005")},
		{Date: at(3, 0), EnergyKWh: decimal.RequireFromString("1.005")},
	}, price)
	summary := Summarize(items, price)

	// 3.015 kWh * 0.333 = 1.003995, while the rounded line costs add up to 0.99.
	assert.Equal(t, "1.00", FormatAmount(summary.TotalCost))
	assert.Equal(t, "3.02", FormatAmount(summary.TotalEnergy))
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, decimal.RequireFromString("0.30"))
	assert.Equal(t, "0.00", FormatAmount(summary.TotalEnergy))
	assert.Equal(t, "0.00", FormatAmount(summary.TotalCost))
}
