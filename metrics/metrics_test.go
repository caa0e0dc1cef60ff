package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequestEvent(t *testing.T) {
	before := testutil.ToFloat64(tradeRequests.WithLabelValues("accepted"))
	RecordRequestEvent("accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(tradeRequests.WithLabelValues("accepted")))
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	RecordHTTPRequest("GET", "GET /api/books", 200, 10*time.Millisecond)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bookswap_http_requests_total{method="GET",path="GET /api/books",status="200"}`)
}
