package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGroupSync(t *testing.T) {
	success := testutil.ToFloat64(groupSyncs.WithLabelValues("success"))
	failure := testutil.ToFloat64(groupSyncs.WithLabelValues("error"))

	RecordGroupSync(nil)
	RecordGroupSync(errors.New("boom"))
	RecordGroupSync(nil)

	assert.Equal(t, success+2, testutil.ToFloat64(groupSyncs.WithLabelValues("success")))
	assert.Equal(t, failure+1, testutil.ToFloat64(groupSyncs.WithLabelValues("error")))
}

func TestRecordFolderOperationAndRegistration(t *testing.T) {
	before := testutil.ToFloat64(folderOperations.WithLabelValues("rename"))
	RecordFolderOperation("rename")
	assert.Equal(t, before+1, testutil.ToFloat64(folderOperations.WithLabelValues("rename")))

	regs := testutil.ToFloat64(registrations)
	RecordRegistration()
	assert.Equal(t, regs+1, testutil.ToFloat64(registrations))
}

func TestHandler(t *testing.T) {
	RecordHTTPRequest(http.MethodGet, "/api/v1/member/profile", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cafevdbmembers_http_requests_total{method="GET",route="/api/v1/member/profile",status="200"}`)
	assert.Contains(t, rec.Body.String(), "cafevdbmembers_http_request_duration_seconds_bucket")
}

func TestRecordCloudRequest(t *testing.T) {
	RecordCloudRequest("REPORT", http.StatusMultiStatus, 40*time.Millisecond)
	RecordCloudRequest(http.MethodGet, 0, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cafevdbmembers_cloud_request_duration_seconds_count{method="REPORT",status="207"}`)
	assert.Contains(t, rec.Body.String(), `cafevdbmembers_cloud_request_duration_seconds_count{method="GET",status="error"}`)
}
