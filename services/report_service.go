package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/metrics"
	"github.com/jhilgenberg/go-e-report/models"
	"github.com/jhilgenberg/go-e-report/services/goe"
)

// Stages named in report errors.
const (
	StageValidation = "validation"
	StageRetrieval  = "retrieval"
	StageRendering  = "rendering"
	StageExport     = "export"
)

type SessionFetcher interface {
	FetchSessions(ctx context.Context, cfg models.Configuration, onProgress goe.ProgressFunc) ([]models.ChargingSession, error)
}

type ReportRenderer interface {
	Render(usages []models.DailyUsage, cfg models.Configuration) (string, error)
}

type SpreadsheetExporter interface {
	Export(pdfPath string, items []models.ReportLineItem, summary ReportSummary, cfg models.Configuration) (string, error)
}

type ReportResult struct {
	PDFPath   string                  `json:"pdf_path"`
	XLSXPath  string                  `json:"xlsx_path,omitempty"`
	DateRange models.DateRange        `json:"date_range"`
	Sessions  int                     `json:"sessions"`
	Items     []models.ReportLineItem `json:"items"`
	Summary   ReportSummary           `json:"summary"`
}

// ReportService runs retrieval, aggregation and rendering for one
// configuration. It keeps no state between runs.
type ReportService struct {
	fetcher  SessionFetcher
	renderer ReportRenderer
	exporter SpreadsheetExporter
	logger   *zap.Logger
}

// NewReportService wires the pipeline. exporter may be nil to skip the XLSX
// companion file.
func NewReportService(fetcher SessionFetcher, renderer ReportRenderer, exporter SpreadsheetExporter, logger *zap.Logger) *ReportService {
	return &ReportService{
		fetcher:  fetcher,
		renderer: renderer,
		exporter: exporter,
		logger:   logging.OrNop(logger),
	}
}

// GenerateReport produces the report for cfg. The notifier sees progress
// while the export is polled, then exactly one terminal event. Errors are
// wrapped as "<stage> failed: ..." and keep their models.ErrorKind.
func (s *ReportService) GenerateReport(ctx context.Context, cfg models.Configuration, notifier Notifier) (*ReportResult, error) {
	if notifier == nil {
		notifier = MultiNotifier{}
	}
	started := time.Now()

	result, stage, err := s.generate(ctx, cfg, notifier)
	days := 0
	if result != nil {
		days = len(result.Items)
	}
	metrics.ObserveReport(stage, err, time.Since(started), days)

	if err != nil {
		err = fmt.Errorf("%s failed: %w", stage, err)
		if errors.Is(err, context.Canceled) {
			s.logger.Warn("report generation canceled", zap.String("stage", stage), zap.Error(err))
			notifier.Failed(err)
			return nil, err
		}
		s.logger.Error("report generation failed",
			zap.String("stage", stage),
			zap.String("kind", string(models.KindOf(err))),
			zap.Error(err))
		notifier.Failed(err)
		return nil, err
	}

	s.logger.Info("report generation finished",
		zap.String("range", cfg.DateRange.String()),
		zap.String("pdf", result.PDFPath),
		zap.Duration("took", time.Since(started)))
	notifier.Succeeded(result)
	return result, nil
}

func (s *ReportService) generate(ctx context.Context, cfg models.Configuration, notifier Notifier) (*ReportResult, string, error) {
	if err := cfg.DateRange.Validate(); err != nil {
		return nil, StageValidation, err
	}
	price, err := ParseUnitPrice(cfg.UnitPrice)
	if err != nil {
		return nil, StageValidation, err
	}

	s.logger.Info("generating report",
		zap.String("api_mode", string(cfg.APIMode)),
		zap.String("range", cfg.DateRange.String()))

	sessions, err := s.fetcher.FetchSessions(ctx, cfg, func(bars []models.ProgressBar) {
		notifier.Progress(bars)
	})
	if err != nil {
		return nil, StageRetrieval, err
	}

	usages := Aggregate(sessions, cfg.DateRange)
	items := BuildLineItems(usages, price)
	summary := Summarize(items, price)
	s.logger.Debug("aggregated sessions",
		zap.Int("sessions", len(sessions)),
		zap.Int("days", len(usages)))

	pdfPath, err := s.renderer.Render(usages, cfg)
	if err != nil {
		return nil, StageRendering, err
	}

	result := &ReportResult{
		PDFPath:   pdfPath,
		DateRange: cfg.DateRange,
		Sessions:  len(sessions),
		Items:     items,
		Summary:   summary,
	}

	if s.exporter != nil {
		xlsxPath, err := s.exporter.Export(pdfPath, items, summary, cfg)
		if err != nil {
			return result, StageExport, err
		}
		result.XLSXPath = xlsxPath
	}

	return result, "", nil
}
