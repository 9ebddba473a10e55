package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	before := testutil.ToFloat64(URLsProcessed.WithLabelValues("imported"))
	URLsProcessed.WithLabelValues("imported").Inc()
	FieldsMissing.WithLabelValues("article").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(URLsProcessed.WithLabelValues("imported")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `catalog_import_urls_total{outcome="imported"}`)
	assert.Contains(t, string(body), `catalog_import_fields_missing_total{field="article"}`)
}
