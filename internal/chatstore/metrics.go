package chatstore

import "github.com/prometheus/client_golang/prometheus"

// Message sources counted by Metrics.
const (
	sourceFetch = "fetch"
	sourcePush  = "push"
	sourceSend  = "send"
)

// Metrics counts reconciliation outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	appended   *prometheus.CounterVec
	dropped    prometheus.Counter
	duplicates *prometheus.CounterVec
	stale      prometheus.Counter
}

// NewMetrics builds the store counters and registers them with reg when it
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_store_messages_appended_total",
			Help: "Messages added to the visible conversation, by source.",
		}, []string{"source"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_store_push_dropped_total",
			Help: "Pushed messages dropped because they belong to another conversation.",
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_store_duplicates_total",
			Help: "Messages skipped because their id was already present, by source.",
		}, []string{"source"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_store_stale_responses_total",
			Help: "History responses discarded because the conversation moved on.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.appended, m.dropped, m.duplicates, m.stale)
	}
	return m
}

func (m *Metrics) incAppended(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.appended.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) incDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) incDuplicate(source string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(source).Inc()
}

func (m *Metrics) incStale() {
	if m == nil {
		return
	}
	m.stale.Inc()
}
