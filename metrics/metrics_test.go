package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	transitionsTotal.Reset()

	RecordTransition("IDLE", "AWAIT_TYPE")
	RecordTransition("IDLE", "AWAIT_TYPE")
	RecordTransition("AWAIT_TYPE", "AWAIT_TYPE")

	assert.Equal(t, 2.0, testutil.ToFloat64(transitionsTotal.WithLabelValues("IDLE", "AWAIT_TYPE")))
	assert.Equal(t, 1, testutil.CollectAndCount(transitionsTotal))
}

func TestRecordSubmission(t *testing.T) {
	submissionsTotal.Reset()

	RecordSubmission(nil)
	RecordSubmission(errors.New("rejected"))
	RecordSubmission(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(submissionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(submissionsTotal.WithLabelValues("error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetSessionsActive(3)
	RecordTranscript()
	RecordEffect("speak")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "voice_rating_sessions_active 3")
	assert.Contains(t, string(body), `voice_rating_effects_total{kind="speak"}`)
	assert.Contains(t, string(body), "voice_rating_transcripts_total")
}
