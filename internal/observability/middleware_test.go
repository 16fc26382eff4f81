package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

func TestRequestMetricsLabelsUnmatchedRoutes(t *testing.T) {
	log := testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log, "/health"))
	r.Use(RequestMetricsMiddleware("middleware-test"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	matched := httpRequests.WithLabelValues("middleware-test", http.MethodGet, "/health", "200")
	unmatched := httpRequests.WithLabelValues("middleware-test", http.MethodGet, unmatchedRoute, "404")
	beforeMatched := testutil.ToFloat64(matched)
	beforeUnmatched := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/health", "/wp-login.php", "/.env"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, beforeMatched+1, testutil.ToFloat64(matched))
	require.Equal(t, beforeUnmatched+2, testutil.ToFloat64(unmatched))
}
