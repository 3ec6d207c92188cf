package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSweep_Result(t *testing.T) {
	before := testutil.ToFloat64(sweepRuns.WithLabelValues("test_sweep", "partial"))
	ObserveSweep("test_sweep", 10*time.Millisecond, 2, false)
	assert.Equal(t, before+1, testutil.ToFloat64(sweepRuns.WithLabelValues("test_sweep", "partial")))
	assert.Equal(t, float64(2), testutil.ToFloat64(sweepItemErrors.WithLabelValues("test_sweep")))

	ObserveSweep("test_sweep", time.Millisecond, 0, true)
	assert.Equal(t, float64(1), testutil.ToFloat64(sweepRuns.WithLabelValues("test_sweep", "aborted")))
}

func TestAlertCounters(t *testing.T) {
	IncAlertCreated("inactivity")
	IncAlertSuppressed("inactivity")
	IncAlertSuppressed("inactivity")

	assert.Equal(t, float64(1), testutil.ToFloat64(alertsCreated.WithLabelValues("inactivity")))
	assert.Equal(t, float64(2), testutil.ToFloat64(alertsSuppressed.WithLabelValues("inactivity")))
}

func TestIncSLABreach_UnknownPriority(t *testing.T) {
	IncSLABreach("", "sweep")
	assert.Equal(t, float64(1), testutil.ToFloat64(slaBreaches.WithLabelValues("unknown", "sweep")))
}

func TestAddSurveyTransitions_IgnoresZero(t *testing.T) {
	AddSurveyTransitions("expired", 0)
	AddSurveyTransitions("expired", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(surveyTransitions.WithLabelValues("expired")))
}

func TestIncNotification(t *testing.T) {
	IncNotification("survey_request", nil)
	IncNotification("survey_request", errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(notifications.WithLabelValues("survey_request", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(notifications.WithLabelValues("survey_request", "error")))
}
