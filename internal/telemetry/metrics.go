// Package telemetry holds the bot's Prometheus metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	CommandsTotal     *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	GridRendersTotal  *prometheus.CounterVec
	PosterFetchFailed prometheus.Counter
	HistoryRowsTotal  *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traktfm_commands_total",
			Help: "Bot commands handled, by command and outcome",
		}, []string{"command", "outcome"})
		CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traktfm_command_duration_seconds",
			Help:    "Time spent handling a bot command",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"})
		GridRendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traktfm_grid_renders_total",
			Help: "Grid compositions, by outcome",
		}, []string{"outcome"})
		PosterFetchFailed = promauto.NewCounter(prometheus.CounterOpts{
			Name: "traktfm_poster_fetch_failed_total",
			Help: "Poster downloads that left a grid cell empty",
		})
		HistoryRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "traktfm_history_rows_total",
			Help: "History rows offered to the store, by result",
		}, []string{"result"})
	})
}

// RecordCommand counts one handled command and its duration.
func RecordCommand(command, outcome string, d time.Duration) {
	if CommandsTotal == nil {
		return
	}
	CommandsTotal.WithLabelValues(command, outcome).Inc()
	CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordGrid counts one composition attempt.
func RecordGrid(ok bool, failedFetches int) {
	if GridRendersTotal == nil {
		return
	}
	if ok {
		GridRendersTotal.WithLabelValues("rendered").Inc()
	} else {
		GridRendersTotal.WithLabelValues("empty").Inc()
	}
	PosterFetchFailed.Add(float64(failedFetches))
}

// RecordBatch counts the outcome of one history save.
func RecordBatch(accepted, duplicates, rejected int) {
	if HistoryRowsTotal == nil {
		return
	}
	HistoryRowsTotal.WithLabelValues("accepted").Add(float64(accepted))
	HistoryRowsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	HistoryRowsTotal.WithLabelValues("rejected").Add(float64(rejected))
}
