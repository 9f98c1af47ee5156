package services

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhilgenberg/go-e-report/models"
)

// Aggregate sums the energy of every session inside rng per calendar day of
// its start. A session counts when it starts on or after rng.Start and ends
// on or before rng.End, so a session crossing either boundary is dropped.
// Sessions without both timestamps never count. The result is sorted by date
// and may be empty.
func Aggregate(sessions []models.ChargingSession, rng models.DateRange) []models.DailyUsage {
	first := models.DateOf(rng.Start)
	last := models.DateOf(rng.End)

	included := lo.Filter(sessions, func(s models.ChargingSession, _ int) bool {
		if s.Open() {
			return false
		}
		return !models.DateOf(s.Start).Before(first) && !models.DateOf(s.End).After(last)
	})

	byDay := lo.GroupBy(included, func(s models.ChargingSession) time.Time {
		return models.DateOf(s.Start)
	})

	days := lo.Keys(byDay)
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return lo.Map(days, func(day time.Time, _ int) models.DailyUsage {
		total := lo.Reduce(byDay[day], func(acc decimal.Decimal, s models.ChargingSession, _ int) decimal.Decimal {
			return acc.Add(s.EnergyKWh)
		}, decimal.Zero)
		return models.DailyUsage{Date: day, EnergyKWh: total}
	})
}
