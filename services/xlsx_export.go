package services

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
)

// XLSXExporter writes the spreadsheet companion of a report next to its PDF.
type XLSXExporter struct {
	language string
	logger   *zap.Logger
}

func NewXLSXExporter(language string, logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{language: language, logger: logging.OrNop(logger)}
}

// Export writes <pdf basename>.xlsx and returns its path.
func (x *XLSXExporter) Export(pdfPath string, items []models.ReportLineItem, summary ReportSummary, cfg models.Configuration) (string, error) {
	labels := GetTranslations(x.language)

	f := excelize.NewFile()
	defer f.Close()

	summarySheet := labels.SheetSummary
	daysSheet := labels.SheetDays
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", models.NewError(models.KindRender, "build xlsx", err)
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return "", models.NewError(models.KindRender, "build xlsx", err)
	}

	summaryRows := [][]interface{}{
		{labels.Title},
		{labels.Period, cfg.DateRange.String()},
		{labels.Employee, strings.TrimSpace(cfg.EmployeeLabel)},
		{labels.LicensePlate, strings.TrimSpace(cfg.LicensePlateLabel)},
		{labels.TotalEnergy, summary.TotalEnergy.Round(2).InexactFloat64()},
		{labels.PricePerKWh, summary.UnitPrice.InexactFloat64()},
		{labels.TotalCost, summary.TotalCost.Round(2).InexactFloat64()},
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return "", models.NewError(models.KindRender, "build xlsx", err)
	}

	dayRows := make([][]interface{}, 0, len(items)+1)
	dayRows = append(dayRows, []interface{}{labels.Date, labels.EnergyKWh, labels.Cost})
	for _, item := range items {
		dayRows = append(dayRows, []interface{}{
			item.Date.Format(models.DisplayDateLayout),
			item.EnergyKWh.Round(2).InexactFloat64(),
			item.Cost.Round(2).InexactFloat64(),
		})
	}
	if err := writeRows(f, daysSheet, dayRows); err != nil {
		return "", models.NewError(models.KindRender, "build xlsx", err)
	}

	path := strings.TrimSuffix(pdfPath, ".pdf") + ".xlsx"
	if err := f.SaveAs(path); err != nil {
		return "", models.NewError(models.KindRender, "save xlsx", err)
	}
	x.logger.Info("generated report xlsx", zap.String("path", path))
	return path, nil
}

// writeRows fills sheet from A1 downwards, one slice per row.
func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
