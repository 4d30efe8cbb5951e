// Package metrics exposes card collection counters for Prometheus.
// A nil *Metrics is a valid no-op collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "giftcards"

type Metrics struct {
	cardsAdded  prometheus.Counter
	duplicates  prometheus.Counter
	rejected    prometheus.Counter
	extractions *prometheus.CounterVec
	autosaves   *prometheus.CounterVec
	cards       *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cardsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_added_total",
			Help:      "Total number of cards accepted into the collection",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Total number of candidates skipped as duplicates",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Total number of extracted candidates dropped by validation",
		}),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Extraction calls per task and result",
			},
			[]string{"task", "result"},
		),
		autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autosaves_total",
				Help:      "Backup file writes per result",
			},
			[]string{"result"},
		),
		cards: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cards",
				Help:      "Cards in the collection per status",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.cardsAdded, m.duplicates, m.rejected, m.extractions, m.autosaves, m.cards)
	return m
}

func (m *Metrics) RecordMerge(added, duplicates, rejected int) {
	if m == nil {
		return
	}
	m.cardsAdded.Add(float64(added))
	m.duplicates.Add(float64(duplicates))
	m.rejected.Add(float64(rejected))
}

func (m *Metrics) RecordExtraction(task, result string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(task, result).Inc()
}

func (m *Metrics) RecordAutosave(result string) {
	if m == nil {
		return
	}
	m.autosaves.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCards(active, archived int) {
	if m == nil {
		return
	}
	m.cards.WithLabelValues("active").Set(float64(active))
	m.cards.WithLabelValues("archived").Set(float64(archived))
}
