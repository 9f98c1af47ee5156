package goe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jhilgenberg/go-e-report/models"
)

const sampleCSV = "Start;Ende;Energie [kWh]\n01.03.2024 08:00:00;01.03.2024 10:00:00;12,50\n"

// fakeGoE serves the charger status, ticket and status endpoints from one
// test server.
type fakeGoE struct {
	mu sync.Mutex

	dllStatus     int
	dll           string
	ticket        string
	readyAfter    int
	finishedCSV   string
	progress      []models.ProgressBar
	statusCalls   int
	ticketCalls   int
	dllCalls      int
	authorization string
}

func newFakeGoE() *fakeGoE {
	return &fakeGoE{
		dllStatus:   http.StatusOK,
		dll:         "https://data.v3.go-e.io/export?e=EXPORT123",
		ticket:      "T-42",
		readyAfter:  1,
		finishedCSV: sampleCSV,
	}
}

func (f *fakeGoE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/status":
		f.dllCalls++
		f.authorization = r.Header.Get("Authorization")
		if f.dllStatus != http.StatusOK {
			w.WriteHeader(f.dllStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"dll": f.dll})
	case "/api/v1/get_ticket":
		f.ticketCalls++
		if r.URL.Query().Get("e") != "EXPORT123" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket": f.ticket})
	case "/api/v1/get_status":
		f.statusCalls++
		status := map[string]interface{}{"message": "Task running"}
		if f.progress != nil {
			status["progressBars"] = f.progress
		}
		if f.statusCalls >= f.readyAfter {
			status["message"] = TaskFinishedMessage
			status["csv"] = f.finishedCSV
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status})
	default:
		http.NotFound(w, r)
	}
}

type recordingSleep struct {
	calls []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newTestClient(t *testing.T, dataURL string, cloudURL string) (*Client, *recordingSleep) {
	t.Helper()
	c := NewClient(http.DefaultClient, Options{Location: time.UTC}, zap.NewNop())
	c.dataBaseURL = dataURL
	c.cloudBaseURL = func(string) string { return cloudURL }
	rec := &recordingSleep{}
	c.sleep = rec.sleep
	return c, rec
}

func TestFetchSessionsLocalHappyPath(t *testing.T) {
	fake := newFakeGoE()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, "http://cloud.invalid")
	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: srv.URL + "/"}

	sessions, err := c.FetchSessions(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(sessions[0].EnergyKWh))
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), sessions[0].Start)
	assert.Empty(t, sleeps.calls)
	assert.Empty(t, fake.authorization)
}

func TestFetchSessionsPollsUntilFinished(t *testing.T) {
	fake := newFakeGoE()
	fake.readyAfter = 5
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, "")
	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: srv.URL}

	sessions, err := c.FetchSessions(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 5, fake.statusCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, sleeps.calls)
}

func TestFetchSessionsTimesOut(t *testing.T) {
	fake := newFakeGoE()
	fake.readyAfter = 1000
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL, "")
	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: srv.URL}

	_, err := c.FetchSessions(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.Equal(t, DefaultMaxPollAttempts, fake.statusCalls)
	assert.Len(t, sleeps.calls, DefaultMaxPollAttempts-1)
}

func TestFetchSessionsFailsOverToCloud(t *testing.T) {
	local := newFakeGoE()
	local.dllStatus = http.StatusNotFound
	localSrv := httptest.NewServer(local)
	defer localSrv.Close()

	cloud := newFakeGoE()
	cloudSrv := httptest.NewServer(cloud)
	defer cloudSrv.Close()

	c, _ := newTestClient(t, cloudSrv.URL, cloudSrv.URL)
	cfg := models.Configuration{
		APIMode:           models.APIModeLocal,
		LocalAPIURL:       localSrv.URL,
		CloudSerialNumber: "123456",
		CloudAPIKey:       "secret",
	}

	sessions, err := c.FetchSessions(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, local.dllCalls)
	assert.Equal(t, 1, cloud.dllCalls)
	assert.Equal(t, "Bearer secret", cloud.authorization)
}

func TestFetchSessionsLocalAndCloudFail(t *testing.T) {
	local := newFakeGoE()
	local.dllStatus = http.StatusNotFound
	localSrv := httptest.NewServer(local)
	defer localSrv.Close()

	cloud := newFakeGoE()
	cloud.dllStatus = http.StatusUnauthorized
	cloudSrv := httptest.NewServer(cloud)
	defer cloudSrv.Close()

	c, _ := newTestClient(t, cloudSrv.URL, cloudSrv.URL)
	cfg := models.Configuration{
		APIMode:           models.APIModeLocal,
		LocalAPIURL:       localSrv.URL,
		CloudSerialNumber: "123456",
		CloudAPIKey:       "secret",
	}

	_, err := c.FetchSessions(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindTransport, models.KindOf(err))
	assert.Zero(t, cloud.ticketCalls)
}

func TestFetchSessionsLocalFailsWithoutCloudCredentials(t *testing.T) {
	local := newFakeGoE()
	local.dllStatus = http.StatusInternalServerError
	localSrv := httptest.NewServer(local)
	defer localSrv.Close()

	c, _ := newTestClient(t, localSrv.URL, "http://cloud.invalid")
	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: localSrv.URL}

	_, err := c.FetchSessions(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindTransport, models.KindOf(err))
	assert.Zero(t, local.ticketCalls)
}

func TestFetchSessionsCloudRequiresSerial(t *testing.T) {
	fake := newFakeGoE()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, srv.URL)
	cfg := models.Configuration{APIMode: models.APIModeCloud, CloudAPIKey: "secret"}

	_, err := c.FetchSessions(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
	assert.Zero(t, fake.dllCalls)
	assert.Zero(t, fake.ticketCalls)
}

func TestFetchSessionsEmptyLocalURLWithoutCloud(t *testing.T) {
	c, _ := newTestClient(t, "http://data.invalid", "http://cloud.invalid")

	_, err := c.FetchSessions(context.Background(), models.Configuration{APIMode: models.APIModeLocal}, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestFetchSessionsProtocolErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeGoE)
	}{
		{"dll missing", func(f *fakeGoE) { f.dll = "" }},
		{"dll without export parameter", func(f *fakeGoE) { f.dll = "https://data.v3.go-e.io/export" }},
		{"ticket missing", func(f *fakeGoE) { f.ticket = "" }},
		{"finished without csv", func(f *fakeGoE) { f.finishedCSV = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeGoE()
			tt.setup(fake)
			srv := httptest.NewServer(fake)
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL, srv.URL)
			cfg := models.Configuration{
				APIMode:           models.APIModeLocal,
				LocalAPIURL:       srv.URL,
				CloudSerialNumber: "123456",
				CloudAPIKey:       "secret",
			}

			_, err := c.FetchSessions(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Equal(t, models.KindProtocol, models.KindOf(err))
			assert.Equal(t, 1, fake.dllCalls, "protocol errors must not fail over")
		})
	}
}

func TestFetchSessionsReportsProgress(t *testing.T) {
	fake := newFakeGoE()
	fake.readyAfter = 2
	fake.progress = []models.ProgressBar{{Name: "Sessions", Progress: 50}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "")
	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: srv.URL}

	var snapshots [][]models.ProgressBar
	_, err := c.FetchSessions(context.Background(), cfg, func(bars []models.ProgressBar) {
		snapshots = append(snapshots, bars)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "Sessions", snapshots[0][0].Name)
	assert.Equal(t, 50.0, snapshots[0][0].Progress)
}

func TestFetchSessionsCancelledWhilePolling(t *testing.T) {
	fake := newFakeGoE()
	fake.readyAfter = 1000
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "")
	c.pollInterval = time.Hour
	core, logs := observer.New(zapcore.DebugLevel)
	c.logger = zap.New(core)

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	cfg := models.Configuration{APIMode: models.APIModeLocal, LocalAPIURL: srv.URL}
	_, err := c.FetchSessions(ctx, cfg, nil)
	require.Error(t, err)
	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.statusCalls)

	assert.Equal(t, 1, logs.FilterMessage("charging data retrieval canceled").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.20", normalizeBaseURL("192.168.1.20"))
	assert.Equal(t, "http://192.168.1.20", normalizeBaseURL(" http://192.168.1.20/ "))
	assert.Equal(t, "https://charger.local", normalizeBaseURL("https://charger.local"))
	assert.Equal(t, "", normalizeBaseURL("  "))
}

func TestStageMachineFailsFromAnyActiveStage(t *testing.T) {
	m := newStageMachine(zap.NewNop())
	require.NoError(t, m.advance(eventDiscover))
	require.NoError(t, m.advance(eventTicket))
	require.NoError(t, m.advance(eventFail))
	assert.Equal(t, StageFailed, m.Current())
	assert.Error(t, m.advance(eventPoll))
}
