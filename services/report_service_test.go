package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/models"
	"github.com/jhilgenberg/go-e-report/services/goe"
)

type stubFetcher struct {
	sessions []models.ChargingSession
	bars     [][]models.ProgressBar
	err      error
	calls    int
}

func (f *stubFetcher) FetchSessions(_ context.Context, _ models.Configuration, onProgress goe.ProgressFunc) ([]models.ChargingSession, error) {
	f.calls++
	for _, b := range f.bars {
		onProgress(b)
	}
	return f.sessions, f.err
}

type stubRenderer struct {
	usages []models.DailyUsage
	err    error
}

func (r *stubRenderer) Render(usages []models.DailyUsage, _ models.Configuration) (string, error) {
	r.usages = usages
	if r.err != nil {
		return "", r.err
	}
	return "/reports/goe_charger_bericht_20240402_090507.pdf", nil
}

type stubExporter struct {
	err error
}

func (e *stubExporter) Export(pdfPath string, _ []models.ReportLineItem, _ ReportSummary, _ models.Configuration) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return strings.TrimSuffix(pdfPath, ".pdf") + ".xlsx", nil
}

type recordingNotifier struct {
	progress  [][]models.ProgressBar
	succeeded []*ReportResult
	failed    []error
}

func (n *recordingNotifier) Progress(bars []models.ProgressBar) { n.progress = append(n.progress, bars) }
func (n *recordingNotifier) Succeeded(r *ReportResult)          { n.succeeded = append(n.succeeded, r) }
func (n *recordingNotifier) Failed(err error)                   { n.failed = append(n.failed, err) }

func TestGenerateReport(t *testing.T) {
	fetcher := &stubFetcher{
		sessions: []models.ChargingSession{session(1, 8, 1, 10, "12.50")},
		bars:     [][]models.ProgressBar{{{Name: "export", Progress: 40}}},
	}
	renderer := &stubRenderer{}
	notifier := &recordingNotifier{}
	svc := NewReportService(fetcher, renderer, &stubExporter{}, zap.NewNop())

	result, err := svc.GenerateReport(context.Background(), reportConfig(t), notifier)
	require.NoError(t, err)

	assert.Equal(t, "/reports/goe_charger_bericht_20240402_090507.xlsx", result.XLSXPath)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "3.75", FormatAmount(result.Summary.TotalCost))
	assert.Equal(t, "12.50", FormatAmount(result.Summary.TotalEnergy))
	require.Len(t, renderer.usages, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(renderer.usages[0].EnergyKWh))

	assert.Len(t, notifier.progress, 1)
	assert.Len(t, notifier.succeeded, 1)
	assert.Empty(t, notifier.failed)
}

func TestGenerateReportValidatesBeforeRetrieval(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *models.Configuration)
	}{
		{"inverted range", func(cfg *models.Configuration) {
			cfg.DateRange = models.DateRange{Start: at(10, 0), End: at(1, 0)}
		}},
		{"missing range", func(cfg *models.Configuration) { cfg.DateRange = models.DateRange{} }},
		{"bad price", func(cfg *models.Configuration) { cfg.UnitPrice = "abc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{}
			notifier := &recordingNotifier{}
			cfg := reportConfig(t)
			tt.mutate(&cfg)

			_, err := NewReportService(fetcher, &stubRenderer{}, nil, zap.NewNop()).GenerateReport(context.Background(), cfg, notifier)
			require.Error(t, err)
			assert.Equal(t, models.KindConfiguration, models.KindOf(err))
			assert.True(t, strings.HasPrefix(err.Error(), "validation failed: "))
			assert.Zero(t, fetcher.calls)
			assert.Len(t, notifier.failed, 1)
			assert.Empty(t, notifier.succeeded)
		})
	}
}

func TestGenerateReportNamesFailedStage(t *testing.T) {
	retrievalErr := models.Errorf(models.KindTimeout, "export not ready after 30 status requests")
	renderErr := models.NewError(models.KindRender, "save pdf", errors.New("disk full"))

	tests := []struct {
		name     string
		fetcher  *stubFetcher
		renderer *stubRenderer
		exporter SpreadsheetExporter
		prefix   string
		kind     models.ErrorKind
	}{
		{"retrieval", &stubFetcher{err: retrievalErr}, &stubRenderer{}, nil, "retrieval failed: ", models.KindTimeout},
		{"rendering", &stubFetcher{}, &stubRenderer{err: renderErr}, nil, "rendering failed: ", models.KindRender},
		{"export", &stubFetcher{}, &stubRenderer{}, &stubExporter{err: renderErr}, "export failed: ", models.KindRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			svc := NewReportService(tt.fetcher, tt.renderer, tt.exporter, zap.NewNop())

			result, err := svc.GenerateReport(context.Background(), reportConfig(t), notifier)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, strings.HasPrefix(err.Error(), tt.prefix), err.Error())
			assert.Equal(t, tt.kind, models.KindOf(err))
			assert.Len(t, notifier.failed, 1)
			assert.Empty(t, notifier.succeeded)
		})
	}
}

func TestGenerateReportEmptyPeriod(t *testing.T) {
	renderer := &stubRenderer{}
	svc := NewReportService(&stubFetcher{}, renderer, nil, zap.NewNop())

	result, err := svc.GenerateReport(context.Background(), reportConfig(t), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Empty(t, renderer.usages)
	assert.Equal(t, "0.00", FormatAmount(result.Summary.TotalCost))
}

func TestGenerateReportTwoSessionsOnTwoDays(t *testing.T) {
	fetcher := &stubFetcher{sessions: []models.ChargingSession{
		session(1, 8, 1, 10, "5.0"),
		session(2, 18, 2, 21, "7.5"),
	}}
	renderer := &stubRenderer{}
	cfg := reportConfig(t)
	cfg.UnitPrice = "0.30"

	result, err := NewReportService(fetcher, renderer, nil, zap.NewNop()).GenerateReport(context.Background(), cfg, nil)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, at(1, 0), result.Items[0].Date)
	assert.Equal(t, "5.00", FormatAmount(result.Items[0].EnergyKWh))
	assert.Equal(t, "1.50", FormatAmount(result.Items[0].Cost))
	assert.Equal(t, at(2, 0), result.Items[1].Date)
	assert.Equal(t, "7.50", FormatAmount(result.Items[1].EnergyKWh))
	assert.Equal(t, "2.25", FormatAmount(result.Items[1].Cost))
	assert.Equal(t, "12.50", FormatAmount(result.Summary.TotalEnergy))
	assert.Equal(t, "3.75", FormatAmount(result.Summary.TotalCost))
	assert.Len(t, renderer.usages, 2)
}

func TestGenerateReportCanceledByCaller(t *testing.T) {
	canceled := models.NewError(models.KindTimeout, "wait for export", context.Canceled)
	notifier := &recordingNotifier{}
	svc := NewReportService(&stubFetcher{err: canceled}, &stubRenderer{}, nil, zap.NewNop())

	_, err := svc.GenerateReport(context.Background(), reportConfig(t), notifier)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasPrefix(err.Error(), "retrieval failed: "))
	assert.Len(t, notifier.failed, 1)
}
