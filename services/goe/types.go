package goe

import (
	"time"

	"github.com/jhilgenberg/go-e-report/models"
)

const (
	// DataAPIBaseURL hosts the export ticket service for local and cloud chargers alike.
	DataAPIBaseURL = "https://data.v3.go-e.io"

	cloudAPIURLPattern = "https://%s.api.v3.go-e.io"

	// TaskFinishedMessage is the status message of a completed export job.
	TaskFinishedMessage = "Task finished"

	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 30
)

// ========== API RESPONSE TYPES ==========

// DLLResponse is the filtered charger status carrying the export URL.
type DLLResponse struct {
	DLL string `json:"dll"`
}

type TicketResponse struct {
	Ticket string `json:"ticket"`
}

// StatusResponse is one poll of an export job. ProgressBars is nil when the
// field is absent and non-nil (possibly empty) when the service sent it.
type StatusResponse struct {
	Status *ExportStatus `json:"status"`
}

type ExportStatus struct {
	Message      string               `json:"message"`
	CSV          string               `json:"csv"`
	ProgressBars []models.ProgressBar `json:"progressBars"`
}

// ========== CSV COLUMNS ==========

const (
	ColumnStart  = "Start"
	ColumnEnd    = "Ende"
	ColumnEnergy = "Energie [kWh]"

	csvTimeLayout = "02.01.2006 15:04:05"
)

// ProgressFunc receives every progress snapshot reported while polling.
type ProgressFunc func(bars []models.ProgressBar)
