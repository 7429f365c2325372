package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsByLabel(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.ImportRow("equipment", OutcomeCreated)
	rec.ImportRow("equipment", OutcomeCreated)
	rec.ImportRow("equipment", "skipped")
	rec.Assignment(OutcomeRejected)

	require.Equal(t, 2.0, testutil.ToFloat64(rec.importRows.WithLabelValues("equipment", OutcomeCreated)))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.importRows.WithLabelValues("equipment", "skipped")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.assignments.WithLabelValues(OutcomeRejected)))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.ImportRow("sites", OutcomeCreated)
	rec.Assignment(OutcomeCreated)
	rec.Resolution("client", true)
	require.NotNil(t, rec.Handler())
}
