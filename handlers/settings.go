package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/services"
	"github.com/jhilgenberg/go-e-report/settings"
)

const maskedKey = "********"

type SettingsHandler struct {
	store  *settings.Store
	logger *zap.Logger
}

func NewSettingsHandler(store *settings.Store, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logging.OrNop(logger)}
}

// SettingsResponse never carries the cloud API key itself.
type SettingsResponse struct {
	settings.Settings
	Configured bool `json:"configured"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Load()
	if err != nil {
		h.logger.Error("failed to load settings", zap.Error(err))
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}
	if s.CloudAPIKey != "" {
		s.CloudAPIKey = maskedKey
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: s, Configured: h.store.Exists()})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if _, err := services.ParseUnitPrice(req.Price); err != nil {
		writeError(w, err)
		return
	}
	req.LocalAPIURL = strings.TrimSpace(req.LocalAPIURL)
	req.SerialNumber = strings.TrimSpace(req.SerialNumber)

	// The UI echoes the mask when the key was not edited; an empty key clears it.
	if req.CloudAPIKey == maskedKey {
		current, err := h.store.Load()
		if err != nil {
			h.logger.Error("failed to load settings", zap.Error(err))
			http.Error(w, "Failed to load settings", http.StatusInternalServerError)
			return
		}
		req.CloudAPIKey = current.CloudAPIKey
	}

	if err := h.store.Save(req); err != nil {
		h.logger.Error("failed to save settings", zap.Error(err))
		http.Error(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}

	h.Get(w, r)
}
