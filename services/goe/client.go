package goe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jhilgenberg/go-e-report/logging"
	"github.com/jhilgenberg/go-e-report/metrics"
	"github.com/jhilgenberg/go-e-report/models"
)

type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	// Location interprets the export's wall clock timestamps.
	Location *time.Location
}

// Client drives the ticket based export protocol of go-e chargers: discover
// the export URL on the charger, request a ticket, poll until the CSV is ready.
type Client struct {
	client       *http.Client
	dataBaseURL  string
	cloudBaseURL func(serial string) string
	pollInterval time.Duration
	maxAttempts  int
	location     *time.Location
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *zap.Logger
}

func NewClient(client *http.Client, opts Options, logger *zap.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Client{
		client:       client,
		dataBaseURL:  DataAPIBaseURL,
		cloudBaseURL: CloudBaseURL,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxPollAttempts,
		location:     opts.Location,
		sleep:        sleepContext,
		logger:       logging.OrNop(logger),
	}
}

// CloudBaseURL is the per-charger cloud API root.
func CloudBaseURL(serial string) string {
	return fmt.Sprintf(cloudAPIURLPattern, serial)
}

// FetchSessions runs the full export exchange and returns every session of
// the export. Date filtering is left to the caller. onProgress may be nil.
func (c *Client) FetchSessions(ctx context.Context, cfg models.Configuration, onProgress ProgressFunc) ([]models.ChargingSession, error) {
	stages := newStageMachine(c.logger)

	sessions, err := c.fetch(ctx, cfg, stages, onProgress)
	if err != nil {
		stage := stages.Current()
		c.fire(stages, eventFail)
		if errors.Is(err, context.Canceled) {
			c.logger.Info("charging data retrieval canceled", zap.String("stage", stage))
			return nil, err
		}
		metrics.RecordRetrievalError(stage, string(models.KindOf(err)))
		c.logger.Error("charging data retrieval failed",
			zap.String("stage", stage),
			zap.String("kind", string(models.KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	return sessions, nil
}

func (c *Client) fetch(ctx context.Context, cfg models.Configuration, stages *stageMachine, onProgress ProgressFunc) ([]models.ChargingSession, error) {
	var ticket models.RetrievalTicket

	c.fire(stages, eventDiscover)
	exportParam, err := c.discoverExport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ticket.ExportParam = exportParam

	c.fire(stages, eventTicket)
	ticketID, err := c.acquireTicket(ctx, exportParam)
	if err != nil {
		return nil, err
	}
	ticket.TicketID = ticketID

	c.fire(stages, eventPoll)
	payload, attempts, err := c.pollUntilReady(ctx, &ticket, onProgress)
	metrics.ObservePollAttempts(attempts)
	if err != nil {
		return nil, err
	}

	sessions, err := ParseSessionsCSV(strings.NewReader(payload), c.location)
	if err != nil {
		return nil, err
	}
	c.fire(stages, eventFinish)

	c.logger.Info("charging data retrieved",
		zap.Int("poll_attempts", attempts),
		zap.Int("rows", len(sessions)))
	return sessions, nil
}

// discoverExport performs step one. In local mode a transport failure is
// retried once against the cloud API when serial and key are configured.
func (c *Client) discoverExport(ctx context.Context, cfg models.Configuration) (string, error) {
	if cfg.APIMode == models.APIModeCloud {
		serial := strings.TrimSpace(cfg.CloudSerialNumber)
		if serial == "" {
			return "", models.Errorf(models.KindConfiguration, "serial number is required for the cloud API")
		}
		return c.requestExportParam(ctx, c.cloudBaseURL(serial), cfg.CloudAPIKey)
	}

	var localErr error
	if localURL := normalizeBaseURL(cfg.LocalAPIURL); localURL == "" {
		localErr = models.Errorf(models.KindConfiguration, "local API URL is not configured")
	} else {
		param, err := c.requestExportParam(ctx, localURL, "")
		if err == nil {
			return param, nil
		}
		if !models.IsKind(err, models.KindTransport) {
			return "", err
		}
		localErr = err
	}

	if !cfg.HasCloudCredentials() {
		if models.IsKind(localErr, models.KindConfiguration) {
			return "", localErr
		}
		return "", fmt.Errorf("%w (no cloud API configuration available)", localErr)
	}

	c.logger.Warn("local API failed, retrying against cloud API", zap.Error(localErr))
	metrics.RecordFailover()

	param, err := c.requestExportParam(ctx, c.cloudBaseURL(strings.TrimSpace(cfg.CloudSerialNumber)), cfg.CloudAPIKey)
	if err != nil {
		if models.IsKind(err, models.KindTransport) {
			return "", models.NewError(models.KindTransport, "discover export endpoint",
				fmt.Errorf("local and cloud API failed: local: %v; cloud: %v", localErr, err))
		}
		return "", err
	}
	return param, nil
}

func (c *Client) requestExportParam(ctx context.Context, baseURL, apiKey string) (string, error) {
	var dll DLLResponse
	if err := c.getJSON(ctx, baseURL+"/api/status?filter=dll", apiKey, &dll); err != nil {
		return "", err
	}
	if dll.DLL == "" {
		return "", models.Errorf(models.KindProtocol, "status response from %s has no dll field", baseURL)
	}

	_, param, found := strings.Cut(dll.DLL, "?e=")
	if !found || param == "" {
		return "", models.Errorf(models.KindProtocol, "dll URL %q has no e= parameter", dll.DLL)
	}
	return param, nil
}

func (c *Client) acquireTicket(ctx context.Context, exportParam string) (string, error) {
	var resp TicketResponse
	if err := c.getJSON(ctx, c.dataBaseURL+"/api/v1/get_ticket?e="+exportParam, "", &resp); err != nil {
		return "", err
	}
	if resp.Ticket == "" {
		return "", models.Errorf(models.KindProtocol, "ticket response has no ticket field")
	}
	return resp.Ticket, nil
}

// pollUntilReady polls the export job. Progress bars are replaced with each
// response that carries them and handed to onProgress right away.
func (c *Client) pollUntilReady(ctx context.Context, ticket *models.RetrievalTicket, onProgress ProgressFunc) (string, int, error) {
	statusURL := c.dataBaseURL + "/api/v1/get_status?ticket=" + ticket.TicketID

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var resp StatusResponse
		if err := c.getJSON(ctx, statusURL, "", &resp); err != nil {
			return "", attempt, err
		}

		if status := resp.Status; status != nil {
			if status.ProgressBars != nil {
				ticket.Progress = append([]models.ProgressBar(nil), status.ProgressBars...)
				if onProgress != nil {
					onProgress(append([]models.ProgressBar(nil), ticket.Progress...))
				}
			}
			if status.Message == TaskFinishedMessage {
				if status.CSV == "" {
					return "", attempt, models.Errorf(models.KindProtocol, "finished export has no csv payload")
				}
				return status.CSV, attempt, nil
			}
		}

		c.logger.Debug("export not ready yet",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Stringer("ticket", ticket))

		if attempt < c.maxAttempts {
			// a canceled caller keeps the timeout kind; errors.Is still finds context.Canceled
			if err := c.sleep(ctx, c.pollInterval); err != nil {
				return "", attempt, models.NewError(models.KindTimeout, "wait for export", err)
			}
		}
	}

	return "", c.maxAttempts, models.Errorf(models.KindTimeout,
		"export not ready after %d status requests", c.maxAttempts)
}

func (c *Client) getJSON(ctx context.Context, url, bearer string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.NewError(models.KindConfiguration, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.NewError(models.KindTransport, "GET "+redact(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewError(models.KindTransport, "GET "+redact(url),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewError(models.KindProtocol, "decode response of "+redact(url), err)
	}
	return nil
}

// normalizeBaseURL accepts "192.168.1.20" as well as "http://192.168.1.20/".
func normalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return raw
}

// redact drops the query string so export parameters and tickets stay out
// of error messages and logs.
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

func (c *Client) fire(stages *stageMachine, event string) {
	if err := stages.advance(event); err != nil {
		c.logger.Debug("retrieval stage transition rejected",
			zap.String("event", event),
			zap.String("stage", stages.Current()),
			zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
