package services

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhilgenberg/go-e-report/models"
)

type ReportSummary struct {
	TotalEnergy decimal.Decimal `json:"total_energy_kwh"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// ParseUnitPrice accepts "0,30" as well as "0.30".
func ParseUnitPrice(raw string) (decimal.Decimal, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if value == "" {
		return decimal.Zero, models.Errorf(models.KindConfiguration, "unit price is required")
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, models.Errorf(models.KindConfiguration, "invalid unit price %q", raw)
	}
	if price.IsNegative() {
		return decimal.Zero, models.Errorf(models.KindConfiguration, "unit price %q must not be negative", raw)
	}
	return price, nil
}

func BuildLineItems(usages []models.DailyUsage, price decimal.Decimal) []models.ReportLineItem {
	return lo.Map(usages, func(u models.DailyUsage, _ int) models.ReportLineItem {
		return models.ReportLineItem{
			Date:      u.Date,
			EnergyKWh: u.EnergyKWh,
			Cost:      u.EnergyKWh.Mul(price),
		}
	})
}

// Summarize totals the unrounded line values; rounding happens only when
// amounts are printed.
func Summarize(items []models.ReportLineItem, price decimal.Decimal) ReportSummary {
	summary := ReportSummary{
		TotalEnergy: decimal.Zero,
		UnitPrice:   price,
		TotalCost:   decimal.Zero,
	}
	for _, item := range items {
		summary.TotalEnergy = summary.TotalEnergy.Add(item.EnergyKWh)
		summary.TotalCost = summary.TotalCost.Add(item.Cost)
	}
	return summary
}

// FormatAmount prints two decimals, rounding half away from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
