package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type APIMode string

const (
	APIModeLocal APIMode = "local"
	APIModeCloud APIMode = "cloud"
)

// ParseAPIMode maps the persisted api_type value to an APIMode. Unknown or
// empty values fall back to local, like the settings dialog does.
func ParseAPIMode(value string) APIMode {
	if strings.EqualFold(strings.TrimSpace(value), string(APIModeCloud)) {
		return APIModeCloud
	}
	return APIModeLocal
}

// Configuration is everything one report run needs. It is handed to the
// report service by value; the service never reads the settings file.
type Configuration struct {
	APIMode           APIMode
	LocalAPIURL       string
	CloudSerialNumber string
	CloudAPIKey       string
	UnitPrice         string // raw user input, "0,30" and "0.30" are both valid
	EmployeeLabel     string
	LicensePlateLabel string
	DateRange         DateRange

	// Optional payee for the reimbursement QR page.
	PayeeIBAN string
	PayeeName string
}

func (c Configuration) HasCloudCredentials() bool {
	return strings.TrimSpace(c.CloudSerialNumber) != "" && strings.TrimSpace(c.CloudAPIKey) != ""
}

// ChargingSession is one row of the charger's CSV export. A zero End means
// the export listed the session without an end time.
type ChargingSession struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	EnergyKWh decimal.Decimal `json:"energy_kwh"`
}

func (s ChargingSession) Open() bool {
	return s.Start.IsZero() || s.End.IsZero()
}

type DailyUsage struct {
	Date      time.Time       `json:"date"`
	EnergyKWh decimal.Decimal `json:"energy_kwh"`
}

type ReportLineItem struct {
	Date      time.Time       `json:"date"`
	EnergyKWh decimal.Decimal `json:"energy_kwh"`
	Cost      decimal.Decimal `json:"cost"`
}

type ProgressBar struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
}

// RetrievalTicket is the transient state of one export job at the vendor.
type RetrievalTicket struct {
	ExportParam string
	TicketID    string
	Progress    []ProgressBar
}

func (t RetrievalTicket) String() string {
	return fmt.Sprintf("ticket=%s bars=%d", t.TicketID, len(t.Progress))
}
