package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStoreRequest(t *testing.T) {
	StoreRequestsTotal.Reset()
	StoreRequestDuration.Reset()

	RecordStoreRequest("ListBookings", nil, 0.01)
	RecordStoreRequest("ListBookings", nil, 0.02)
	RecordStoreRequest("ListBookings", errors.New("boom"), 0.5)

	assert.Equal(t, float64(2), testutil.ToFloat64(StoreRequestsTotal.WithLabelValues("ListBookings", ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(StoreRequestsTotal.WithLabelValues("ListBookings", ResultError)))
	assert.Equal(t, 1, testutil.CollectAndCount(StoreRequestDuration))
}

func TestRecordValidationError(t *testing.T) {
	ValidationErrorsTotal.Reset()

	RecordValidationError("GetBookings")
	RecordValidationError("GetBookings")

	assert.Equal(t, float64(2), testutil.ToFloat64(ValidationErrorsTotal.WithLabelValues("GetBookings")))
}

func TestRecordActivityNotification(t *testing.T) {
	ActivityNotificationsTotal.Reset()

	RecordActivityNotification("check-in")
	RecordActivityNotification("check-out")
	RecordActivityNotification("check-in")

	assert.Equal(t, float64(2), testutil.ToFloat64(ActivityNotificationsTotal.WithLabelValues("check-in")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ActivityNotificationsTotal.WithLabelValues("check-out")))
}

func TestPush(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Push(srv.URL, "sbcntr-booking-activity"))
	assert.Equal(t, "/metrics/job/sbcntr-booking-activity", path)
}
