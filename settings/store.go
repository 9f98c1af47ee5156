package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/crypto"
	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
)

const DefaultPrice = "0.30"

// Settings is the persisted settings object shared with the desktop tool.
type Settings struct {
	APIType       string `json:"api_type"`
	LocalAPIURL   string `json:"local_api_url"`
	CloudAPIKey   string `json:"cloud_api_key"`
	SerialNumber  string `json:"serial_number"`
	Price         string `json:"price"`
	Employee      string `json:"employee"`
	LicensePlate  string `json:"license_plate"`
	IBAN          string `json:"iban,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
}

// fileSettings additionally reads api_url, the only key of the simple
// local-only variant of the file.
type fileSettings struct {
	Settings
	LegacyAPIURL string `json:"api_url,omitempty"`
}

func Defaults() Settings {
	return Settings{
		APIType: string(models.APIModeLocal),
		Price:   DefaultPrice,
	}
}

// Configuration builds the value a report run consumes.
func (s Settings) Configuration(rng models.DateRange) models.Configuration {
	return models.Configuration{
		APIMode:           models.ParseAPIMode(s.APIType),
		LocalAPIURL:       strings.TrimSpace(s.LocalAPIURL),
		CloudSerialNumber: strings.TrimSpace(s.SerialNumber),
		CloudAPIKey:       strings.TrimSpace(s.CloudAPIKey),
		UnitPrice:         s.Price,
		EmployeeLabel:     s.Employee,
		LicensePlateLabel: s.LicensePlate,
		DateRange:         rng,
		PayeeIBAN:         s.IBAN,
		PayeeName:         s.AccountHolder,
	}
}

type Store struct {
	path   string
	key    []byte
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStore reads and writes the settings file at path. A non-nil key
// encrypts the cloud API key at rest.
func NewStore(path string, key []byte, logger *zap.Logger) *Store {
	return &Store{path: path, key: key, logger: logging.OrNop(logger)}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the defaults when the file does not exist yet.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	file := fileSettings{Settings: Defaults()}
	if err := json.Unmarshal(data, &file); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	settings := file.Settings
	if settings.LocalAPIURL == "" && file.LegacyAPIURL != "" {
		settings.LocalAPIURL = file.LegacyAPIURL
		settings.APIType = string(models.APIModeLocal)
	}
	if settings.APIType == "" {
		settings.APIType = string(models.APIModeLocal)
	}
	if strings.TrimSpace(settings.Price) == "" {
		settings.Price = DefaultPrice
	}

	settings.CloudAPIKey, err = crypto.OpenField(settings.CloudAPIKey, s.key)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to decrypt cloud API key: %w", err)
	}

	return settings, nil
}

// Save replaces the file atomically with mode 0600.
func (s *Store) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.APIType != string(models.APIModeCloud) {
		settings.APIType = string(models.APIModeLocal)
	}

	sealed, err := crypto.SealField(settings.CloudAPIKey, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt cloud API key: %w", err)
	}
	settings.CloudAPIKey = sealed

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}

	s.logger.Info("settings saved",
		zap.String("path", s.path),
		zap.Bool("encrypted", s.key != nil))
	return nil
}
