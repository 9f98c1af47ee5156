package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/models"
	"github.com/jhilgenberg/go-e-report/services"
	"github.com/jhilgenberg/go-e-report/settings"
)

type ReportGenerator interface {
	GenerateReport(ctx context.Context, cfg models.Configuration, notifier services.Notifier) (*services.ReportResult, error)
}

type ReportHandler struct {
	generator ReportGenerator
	store     *settings.Store
	notifier  services.Notifier
	outputDir string
	prefix    string
	logger    *zap.Logger

	// one report at a time; the vendor export is per charger
	running sync.Mutex
}

func NewReportHandler(generator ReportGenerator, store *settings.Store, notifier services.Notifier, outputDir, prefix string, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		generator: generator,
		store:     store,
		notifier:  notifier,
		outputDir: outputDir,
		prefix:    prefix,
		logger:    logging.OrNop(logger),
	}
}

// GenerateRequest selects the period either by explicit dates (dd.mm.yyyy
// or yyyy-mm-dd) or by year and month.
type GenerateRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
}

func (req GenerateRequest) DateRange() (models.DateRange, error) {
	if req.StartDate == "" && req.EndDate == "" && req.Month != 0 {
		return models.MonthRange(req.Year, time.Month(req.Month))
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return models.DateRange{}, err
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return models.DateRange{}, err
	}
	return models.NewDateRange(start, end)
}

type ReportFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type GenerateResponse struct {
	*services.ReportResult
	PDFName  string `json:"pdf_name"`
	XLSXName string `json:"xlsx_name,omitempty"`
}

func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	rng, err := req.DateRange()
	if err != nil {
		writeError(w, err)
		return
	}

	if !h.running.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a report is already being generated"})
		return
	}
	defer h.running.Unlock()

	s, err := h.store.Load()
	if err != nil {
		h.logger.Error("failed to load settings", zap.Error(err))
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	result, err := h.generator.GenerateReport(r.Context(), s.Configuration(rng), h.notifier)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := GenerateResponse{ReportResult: result, PDFName: filepath.Base(result.PDFPath)}
	if result.XLSXPath != "" {
		resp.XLSXName = filepath.Base(result.XLSXPath)
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns generated files, newest first.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.outputDir)
	if err != nil && !os.IsNotExist(err) {
		h.logger.Error("failed to list reports", zap.Error(err))
		http.Error(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}

	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (ReportFile, bool) {
		if e.IsDir() || !h.isReportFile(e.Name()) {
			return ReportFile{}, false
		}
		info, err := e.Info()
		if err != nil {
			return ReportFile{}, false
		}
		return ReportFile{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()}, true
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })

	writeJSON(w, http.StatusOK, files)
}

func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name != filepath.Base(name) || !h.isReportFile(name) {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(h.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (h *ReportHandler) isReportFile(name string) bool {
	if !strings.HasPrefix(name, h.prefix+"_") {
		return false
	}
	return strings.HasSuffix(name, ".pdf") || strings.HasSuffix(name, ".xlsx")
}
