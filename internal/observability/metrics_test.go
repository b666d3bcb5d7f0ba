package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveInboundEvent(t *testing.T) {
	counter := wsInboundEventsTotal.WithLabelValues("react", OutcomeDenied)
	before := testutil.ToFloat64(counter)

	ObserveInboundEvent("react", OutcomeDenied, 3*time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestActiveConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(wsActiveConnections)

	IncWSActive()
	IncWSActive()
	DecWSActive()

	require.Equal(t, before+1, testutil.ToFloat64(wsActiveConnections))
	DecWSActive()
}

func TestHTTPMetricsMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	matched := httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeMatched, beforeUnmatched := testutil.ToFloat64(matched), testutil.ToFloat64(unmatched)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	require.Equal(t, beforeMatched+1, testutil.ToFloat64(matched))
	require.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}

func TestBuildHeadersSkipsEmptyValues(t *testing.T) {
	require.Equal(t, map[string]string{"x-request-id": "r1"}, BuildHeaders("r1", ""))
	require.Empty(t, BuildHeaders("", ""))
}
