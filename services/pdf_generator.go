package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
)

const (
	DefaultReportPrefix = "goe_charger_bericht"
	reportTimestamp     = "20060102_150405"

	tableDateWidth    = 76
	tableValueWidth   = 57
	tableRowHeight    = 7
	summaryLabelWidth = 133
)

type PDFOptions struct {
	OutputDir string
	Prefix    string
	Language  string
	// TempDir receives the transient chart and QR images; empty means os.TempDir().
	TempDir  string
	Location *time.Location
}

type PDFGenerator struct {
	outputDir string
	prefix    string
	language  string
	tempDir   string
	location  *time.Location
	now       func() time.Time
	compress  bool
	logger    *zap.Logger
}

func NewPDFGenerator(opts PDFOptions, logger *zap.Logger) *PDFGenerator {
	if opts.Prefix == "" {
		opts.Prefix = DefaultReportPrefix
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &PDFGenerator{
		outputDir: opts.OutputDir,
		prefix:    opts.Prefix,
		language:  opts.Language,
		tempDir:   opts.TempDir,
		location:  opts.Location,
		now:       time.Now,
		compress:  true,
		logger:    logging.OrNop(logger),
	}
}

// ReportFileName is "<prefix>_<YYYYMMDD_HHMMSS>.pdf".
func ReportFileName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.pdf", prefix, at.Format(reportTimestamp))
}

// Render writes the report for usages and returns the path of the PDF.
// Transient images are removed on every path; a failed write leaves no PDF.
func (pg *PDFGenerator) Render(usages []models.DailyUsage, cfg models.Configuration) (string, error) {
	price, err := ParseUnitPrice(cfg.UnitPrice)
	if err != nil {
		return "", err
	}
	items := BuildLineItems(usages, price)
	summary := Summarize(items, price)

	now := pg.now().In(pg.location)
	labels := GetTranslations(pg.language)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetCompression(pg.compress)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 15)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 10, tr(labels.Title), "", 1, "C", false, 0, "")
		pdf.Line(10, 20, 200, 20)
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s %d", tr(labels.Page), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Period
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s: %s", labels.Period, cfg.DateRange)), "", 1, "L", true, 0, "")
	pdf.Ln(3)

	pg.drawPersonLine(pdf, tr, labels, cfg)

	// Chart
	if len(usages) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 10, tr(labels.NoSessions), "", 1, "C", false, 0, "")
	} else {
		chartPath, err := renderUsageChart(usages, labels, pg.tempDir)
		if err != nil {
			return "", models.NewError(models.KindRender, "render chart", err)
		}
		defer pg.removeTemp(chartPath)

		pdf.ImageOptions(chartPath, 10, 0, 190, 0, true, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}
	pdf.Ln(5)

	pg.drawTable(pdf, tr, labels, items)
	pdf.Ln(5)

	// Summary
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(52, 73, 94)
	pdf.SetTextColor(255, 255, 255)
	summaryRows := [][2]string{
		{labels.TotalEnergy, FormatAmount(summary.TotalEnergy) + " kWh"},
		{labels.PricePerKWh, FormatAmount(summary.UnitPrice) + " EUR"},
		{labels.TotalCost, FormatAmount(summary.TotalCost) + " EUR"},
	}
	for _, row := range summaryRows {
		pdf.CellFormat(summaryLabelWidth, 8, tr(row[0]), "1", 0, "L", true, 0, "")
		pdf.CellFormat(tableValueWidth, 8, row[1], "1", 1, "R", true, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("%s: %s", labels.Generated, now.Format(models.DisplayDateTimeLayout))), "", 1, "R", false, 0, "")

	if strings.TrimSpace(cfg.PayeeIBAN) != "" {
		qrPath := pg.drawPaymentPage(pdf, tr, labels, cfg, summary)
		if qrPath != "" {
			defer pg.removeTemp(qrPath)
		}
	}

	if err := pdf.Error(); err != nil {
		return "", models.NewError(models.KindRender, "build pdf", err)
	}

	if err := os.MkdirAll(pg.outputDir, 0755); err != nil {
		return "", models.NewError(models.KindRender, "create output directory", err)
	}
	path := filepath.Join(pg.outputDir, ReportFileName(pg.prefix, now))
	if err := pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return "", models.NewError(models.KindRender, "save pdf", err)
	}

	pg.logger.Info("generated report pdf",
		zap.String("path", path),
		zap.Int("days", len(items)))
	return path, nil
}

// drawPersonLine prints employee and plate side by side, or whichever one is
// set across the full width.
func (pg *PDFGenerator) drawPersonLine(pdf *gofpdf.Fpdf, tr func(string) string, labels ReportTranslations, cfg models.Configuration) {
	employee := strings.TrimSpace(cfg.EmployeeLabel)
	plate := strings.TrimSpace(cfg.LicensePlateLabel)
	if employee == "" && plate == "" {
		return
	}

	employeeText := tr(fmt.Sprintf("%s: %s", labels.Employee, employee))
	plateText := tr(fmt.Sprintf("%s: %s", labels.LicensePlate, plate))

	pdf.SetFont("Arial", "", 11)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(0, 0, 0)
	switch {
	case employee != "" && plate != "":
		pdf.CellFormat(130, 8, employeeText, "", 0, "L", true, 0, "")
		pdf.CellFormat(60, 8, plateText, "", 1, "R", true, 0, "")
	case employee != "":
		pdf.CellFormat(190, 8, employeeText, "", 1, "L", true, 0, "")
	default:
		pdf.CellFormat(190, 8, plateText, "", 1, "L", true, 0, "")
	}
	pdf.Ln(3)
}

func (pg *PDFGenerator) drawTable(pdf *gofpdf.Fpdf, tr func(string) string, labels ReportTranslations, items []models.ReportLineItem) {
	drawHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(52, 73, 94)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(tableDateWidth, 8, tr(labels.Date), "1", 0, "C", true, 0, "")
		pdf.CellFormat(tableValueWidth, 8, tr(labels.EnergyKWh), "1", 0, "C", true, 0, "")
		pdf.CellFormat(tableValueWidth, 8, tr(labels.Cost), "1", 1, "C", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(0, 0, 0)
	}

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()

	drawHeader()
	for i, item := range items {
		if pdf.GetY()+tableRowHeight > pageHeight-bottomMargin {
			pdf.AddPage()
			drawHeader()
		}
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(245, 245, 245)
		}
		pdf.CellFormat(tableDateWidth, tableRowHeight, item.Date.Format(models.DisplayDateLayout), "1", 0, "C", true, 0, "")
		pdf.CellFormat(tableValueWidth, tableRowHeight, FormatAmount(item.EnergyKWh), "1", 0, "R", true, 0, "")
		pdf.CellFormat(tableValueWidth, tableRowHeight, FormatAmount(item.Cost), "1", 1, "R", true, 0, "")
	}
}

// drawPaymentPage adds the EPC QR reimbursement page and returns the QR image
// path for cleanup. Bad payee data only skips the page.
func (pg *PDFGenerator) drawPaymentPage(pdf *gofpdf.Fpdf, tr func(string) string, labels ReportTranslations, cfg models.Configuration, summary ReportSummary) string {
	req := PaymentRequest{
		Name:   cfg.PayeeName,
		IBAN:   cfg.PayeeIBAN,
		Amount: summary.TotalCost,
		Text:   fmt.Sprintf("%s %s", labels.PaymentPurpose, cfg.DateRange),
	}
	qrData, err := generateEPCQRData(req)
	if err != nil {
		pg.logger.Warn("skipping payment QR page", zap.Error(err))
		return ""
	}
	qrPath, err := writeQRImage(qrData, pg.tempDir)
	if err != nil {
		pg.logger.Warn("failed to generate QR code", zap.Error(err))
		return ""
	}

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(labels.PaymentInfo), "", 1, "L", false, 0, "")

	y := pdf.GetY() + 5
	pdf.ImageOptions(qrPath, 55, y, 100, 100, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetY(y + 105)

	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("%s: %s", labels.AccountHolder, strings.TrimSpace(cfg.PayeeName)),
		fmt.Sprintf("%s: %s", labels.IBAN, normalizeIBAN(cfg.PayeeIBAN)),
		fmt.Sprintf("%s: %s EUR", labels.Amount, FormatAmount(summary.TotalCost)),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}
	return qrPath
}

func (pg *PDFGenerator) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		pg.logger.Debug("failed to remove temporary image", zap.String("path", path), zap.Error(err))
	}
}
