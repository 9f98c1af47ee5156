package services

import (
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
)

// Event types pushed to UI and broker subscribers.
const (
	EventProgress  = "progress"
	EventSucceeded = "succeeded"
	EventFailed    = "failed"
)

// Notifier receives the progress of one report run followed by exactly one
// of Succeeded or Failed.
type Notifier interface {
	Progress(bars []models.ProgressBar)
	Succeeded(result *ReportResult)
	Failed(err error)
}

// ReportEvent is the wire shape of a notification.
type ReportEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type FailureInfo struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func NewProgressEvent(bars []models.ProgressBar) ReportEvent {
	if bars == nil {
		bars = []models.ProgressBar{}
	}
	return ReportEvent{Type: EventProgress, Data: bars}
}

func NewSucceededEvent(result *ReportResult) ReportEvent {
	return ReportEvent{Type: EventSucceeded, Data: result}
}

func NewFailedEvent(err error) ReportEvent {
	return ReportEvent{Type: EventFailed, Data: FailureInfo{
		Kind:  string(models.KindOf(err)),
		Error: err.Error(),
	}}
}

// MultiNotifier fans out to every non-nil notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Progress(bars []models.ProgressBar) {
	for _, n := range m {
		if n != nil {
			n.Progress(bars)
		}
	}
}

func (m MultiNotifier) Succeeded(result *ReportResult) {
	for _, n := range m {
		if n != nil {
			n.Succeeded(result)
		}
	}
}

func (m MultiNotifier) Failed(err error) {
	for _, n := range m {
		if n != nil {
			n.Failed(err)
		}
	}
}

// LogNotifier reports to the log; the CLI uses it as its progress display.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

func (l *LogNotifier) Progress(bars []models.ProgressBar) {
	for _, bar := range bars {
		l.logger.Info("export progress",
			zap.String("name", bar.Name),
			zap.Float64("progress", bar.Progress))
	}
}

func (l *LogNotifier) Succeeded(result *ReportResult) {
	l.logger.Info("report generated",
		zap.String("pdf", result.PDFPath),
		zap.String("xlsx", result.XLSXPath),
		zap.Int("days", len(result.Items)),
		zap.String("total_energy_kwh", FormatAmount(result.Summary.TotalEnergy)),
		zap.String("total_cost", FormatAmount(result.Summary.TotalCost)))
}

func (l *LogNotifier) Failed(err error) {
	l.logger.Error("report failed",
		zap.String("kind", string(models.KindOf(err))),
		zap.Error(err))
}
