package services

// ReportTranslations contains all text that appears on a charging report
type ReportTranslations struct {
	Title          string
	Period         string
	Employee       string
	LicensePlate   string
	ChartTitle     string
	ChartAxisDate  string
	ChartAxisKWh   string
	NoSessions     string
	Date           string
	EnergyKWh      string
	Cost           string
	TotalEnergy    string
	PricePerKWh    string
	TotalCost      string
	Generated      string
	Page           string
	PaymentInfo    string
	AccountHolder  string
	IBAN           string
	Amount         string
	PaymentPurpose string

	// XLSX sheet names
	SheetSummary string
	SheetDays    string
}

// GetTranslations returns translations for the specified language
func GetTranslations(language string) ReportTranslations {
	switch language {
	case "en": // English
		return ReportTranslations{
			Title:          "go-e Charger Charging Report",
			Period:         "Period",
			Employee:       "Employee",
			LicensePlate:   "Vehicle",
			ChartTitle:     "Daily energy",
			ChartAxisDate:  "Date",
			ChartAxisKWh:   "Energy (kWh)",
			NoSessions:     "No completed charging sessions in this period.",
			Date:           "Date",
			EnergyKWh:      "kWh",
			Cost:           "EUR",
			TotalEnergy:    "Total energy",
			PricePerKWh:    "Price per kWh",
			TotalCost:      "Total cost",
			Generated:      "Generated on",
			Page:           "Page",
			PaymentInfo:    "Reimbursement",
			AccountHolder:  "Account holder",
			IBAN:           "IBAN",
			Amount:         "Amount",
			PaymentPurpose: "Charging costs",
			SheetSummary:   "summary",
			SheetDays:      "days",
		}
	default: // German
		return ReportTranslations{
			Title:          "go-e Charger Ladebericht",
			Period:         "Zeitraum",
			Employee:       "Mitarbeiter",
			LicensePlate:   "KFZ",
			ChartTitle:     "Energie pro Tag",
			ChartAxisDate:  "Datum",
			ChartAxisKWh:   "Energie (kWh)",
			NoSessions:     "Keine abgeschlossenen Ladevorgänge in diesem Zeitraum.",
			Date:           "Datum",
			EnergyKWh:      "kWh",
			Cost:           "EUR",
			TotalEnergy:    "Gesamtenergie",
			PricePerKWh:    "Strompreis pro kWh",
			TotalCost:      "Gesamtkosten",
			Generated:      "Erstellt am",
			Page:           "Seite",
			PaymentInfo:    "Erstattung",
			AccountHolder:  "Kontoinhaber",
			IBAN:           "IBAN",
			Amount:         "Betrag",
			PaymentPurpose: "Ladekosten",
			SheetSummary:   "summary",
			SheetDays:      "days",
		}
	}
}
