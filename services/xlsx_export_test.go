package services

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/models"
)

func TestXLSXExport(t *testing.T) {
	price := decimal.RequireFromString("0.30")
	items := BuildLineItems([]models.DailyUsage{
		{Date: at(1, 0), EnergyKWh: decimal.RequireFromString("12.50")},
		{Date: at(2, 0), EnergyKWh: decimal.RequireFromString("3")},
	}, price)
	summary := Summarize(items, price)

	pdfPath := filepath.Join(t.TempDir(), "goe_charger_bericht_20240402_090507.pdf")
	path, err := NewXLSXExporter("de", zap.NewNop()).Export(pdfPath, items, summary, reportConfig(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Ext(path), ".xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("days")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Datum", "kWh", "EUR"}, rows[0])
	assert.Equal(t, "01.03.2024", rows[1][0])
	assert.Equal(t, "3.75", rows[1][2])

	total, err := f.GetCellValue("summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "4.65", total)
}

func TestWriteRowsReportsCellErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, writeRows(f, "Sheet1", [][]interface{}{{"a", 1.5}, {"b"}}))
	v, err := f.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)

	err = writeRows(f, "missing", [][]interface{}{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing!A1")
}
