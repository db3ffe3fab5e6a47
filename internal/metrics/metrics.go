// Package metrics exposes IVR turn and session metrics to Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/prometheus/client_golang/prometheus"
)

// SessionCounter returns the number of live call sessions.
type SessionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector is a prometheus.Collector that gathers gauges at scrape time.
type Collector struct {
	sessions  SessionCounter
	startTime time.Time
	logger    *slog.Logger

	activeSessionsDesc *prometheus.Desc
	uptimeDesc         *prometheus.Desc
}

// NewCollector creates a scrape-time collector. sessions may be nil if
// unavailable.
func NewCollector(sessions SessionCounter, startTime time.Time, logger *slog.Logger) *Collector {
	return &Collector{
		sessions:  sessions,
		startTime: startTime,
		logger:    logger.With("subsystem", "metrics"),

		activeSessionsDesc: prometheus.NewDesc(
			"phonetree_active_sessions",
			"Number of call sessions currently stored",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"phonetree_uptime_seconds",
			"Seconds since the phonetree process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessionsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries the session store at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.sessions != nil {
		count, err := c.sessions.Count(ctx)
		if err != nil {
			c.logger.Error("failed to count sessions", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.activeSessionsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}

// Turn kinds and outcomes used as label values.
const (
	KindNew   = "new"
	KindInput = "input"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder counts engine turns. It implements ivr.TurnObserver.
type Recorder struct {
	turns        *prometheus.CounterVec
	stateEntries *prometheus.CounterVec
	chainLength  prometheus.Histogram
}

// NewRecorder creates a Recorder and registers its metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phonetree_turns_total",
			Help: "Webhook turns handled by the IVR engine",
		}, []string{"kind", "outcome"}),
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phonetree_state_entries_total",
			Help: "Times each state was entered",
		}, []string{"state"}),
		chainLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "phonetree_chain_length",
			Help:    "Number of states entered in one successful turn",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
		}),
	}
	reg.MustRegister(r.turns, r.stateEntries, r.chainLength)
	return r
}

// ObserveTurn implements ivr.TurnObserver.
func (r *Recorder) ObserveTurn(from ivr.StateID, turn ivr.Turn, err error) {
	kind := KindInput
	if from == "" {
		kind = KindNew
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.turns.WithLabelValues(kind, outcome).Inc()

	for _, id := range turn.Entered {
		r.stateEntries.WithLabelValues(string(id)).Inc()
	}
	if err == nil {
		r.chainLength.Observe(float64(len(turn.Entered)))
	}
}

var _ ivr.TurnObserver = (*Recorder)(nil)
