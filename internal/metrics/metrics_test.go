package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordersCountByLabel(t *testing.T) {
	before := testutil.ToFloat64(chainCalls.WithLabelValues("vault", "totalAssets", "error"))
	RecordCall("vault", "totalAssets", errors.New("node down"))
	RecordCall("vault", "totalAssets", nil)
	require.Equal(t, before+1, testutil.ToFloat64(chainCalls.WithLabelValues("vault", "totalAssets", "error")))

	beforeFlows := testutil.ToFloat64(flows.WithLabelValues("deposit", "done"))
	RecordFlow("deposit", "done")
	require.Equal(t, beforeFlows+1, testutil.ToFloat64(flows.WithLabelValues("deposit", "done")))
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordStatusAnomaly()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "rental_client_fetcher_agreement_status_anomalies_total")
}
