package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordMerge(2, 1, 3)
	m.RecordMerge(1, 0, 0)
	m.RecordExtraction("cards", "ok")
	m.RecordAutosave("failed")
	m.SetCards(4, 1)

	require.Equal(t, 3.0, testutil.ToFloat64(m.cardsAdded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))
	require.Equal(t, 3.0, testutil.ToFloat64(m.rejected))
	require.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("cards", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.autosaves.WithLabelValues("failed")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.cards.WithLabelValues("active")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordMerge(1, 1, 1)
		m.RecordExtraction("balance", "failed")
		m.RecordAutosave("saved")
		m.SetCards(1, 1)
	})
}
