package goe

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhilgenberg/go-e-report/models"
)

// ParseSessionsCSV decodes the charger's semicolon separated export.
// Any row that cannot be converted fails the whole payload.
func ParseSessionsCSV(r io.Reader, loc *time.Location) ([]models.ChargingSession, error) {
	if loc == nil {
		loc = time.Local
	}

	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, models.Errorf(models.KindParse, "csv payload is empty")
	}
	if err != nil {
		return nil, models.NewError(models.KindParse, "read csv header", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	startIdx, ok := columns[ColumnStart]
	if !ok {
		return nil, models.Errorf(models.KindParse, "csv column %q missing", ColumnStart)
	}
	endIdx, ok := columns[ColumnEnd]
	if !ok {
		return nil, models.Errorf(models.KindParse, "csv column %q missing", ColumnEnd)
	}
	energyIdx, ok := columns[ColumnEnergy]
	if !ok {
		return nil, models.Errorf(models.KindParse, "csv column %q missing", ColumnEnergy)
	}

	var sessions []models.ChargingSession
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, models.NewError(models.KindParse, fmt.Sprintf("row %d", row), err)
		}
		if isBlankRecord(record) {
			continue
		}

		session, err := parseSessionRecord(record, startIdx, endIdx, energyIdx, loc)
		if err != nil {
			return nil, models.NewError(models.KindParse, fmt.Sprintf("row %d", row), err)
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func parseSessionRecord(record []string, startIdx, endIdx, energyIdx int, loc *time.Location) (models.ChargingSession, error) {
	var session models.ChargingSession

	start, err := parseExportTime(field(record, startIdx), loc)
	if err != nil {
		return session, fmt.Errorf("invalid %s: %w", ColumnStart, err)
	}
	end, err := parseExportTime(field(record, endIdx), loc)
	if err != nil {
		return session, fmt.Errorf("invalid %s: %w", ColumnEnd, err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return session, fmt.Errorf("%s %s is before %s %s",
			ColumnEnd, end.Format(csvTimeLayout), ColumnStart, start.Format(csvTimeLayout))
	}

	energy, err := ParseDecimal(field(record, energyIdx))
	if err != nil {
		return session, fmt.Errorf("invalid %s: %w", ColumnEnergy, err)
	}
	if energy.IsNegative() {
		return session, fmt.Errorf("negative %s %s", ColumnEnergy, energy.String())
	}

	session.Start = start
	session.End = end
	session.EnergyKWh = energy
	return session, nil
}

// parseExportTime returns the zero time for an empty cell; the export leaves
// Ende empty for sessions that were still running.
func parseExportTime(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(csvTimeLayout, value, loc)
}

// ParseDecimal reads a number written with a comma or a dot as decimal
// separator. With a comma present, dots are thousands separators.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(value, ",") {
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	}
	return decimal.NewFromString(value)
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
