package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLogin(t *testing.T) {
	before := testutil.ToFloat64(LoginsTotal.WithLabelValues(ResultRejected, "paused"))
	ObserveLogin(ResultRejected, "paused", time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(LoginsTotal.WithLabelValues(ResultRejected, "paused")))
}

func TestHandler(t *testing.T) {
	KeysCreated.Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "keygate_keys_created_total")
}
