package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	RecordFailover()
	ObservePollAttempts(3)
	RecordRetrievalError("polling", "TimeoutError")
	ObserveReport("retrieval", errors.New("boom"), 2*time.Second, 0)
	ObserveReport("", nil, time.Second, 4)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "goe_report_retrieval_failover_total"))
	assert.True(t, strings.Contains(body, `goe_report_retrieval_errors_total{kind="TimeoutError",stage="polling"}`))
	assert.True(t, strings.Contains(body, `goe_report_reports_total{result="error",stage="retrieval"}`))
	assert.True(t, strings.Contains(body, "goe_report_last_report_days 4"))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
	assert.Equal(t, "canceled", resultLabel(fmt.Errorf("retrieval failed: %w", context.Canceled)))
	assert.Equal(t, "error", resultLabel(fmt.Errorf("retrieval failed: %w", context.DeadlineExceeded)))
}
