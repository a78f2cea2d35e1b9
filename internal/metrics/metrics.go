package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/signalnine/ipaugur/internal/protocol"
)

const (
	namespace       = "ipaugur"
	otherAttackType = "other"
)

// Metrics counts what each invocation did. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	linesScanned   prometheus.Counter
	uniqueIPs      prometheus.Histogram
	triagedIPs     prometheus.Counter
	modelCalls     *prometheus.CounterVec
	parseFailures  prometheus.Counter
	offVocabulary  prometheus.Counter
	invocations    *prometheus.CounterVec
	modelLatency   prometheus.Histogram
	attackTypeSeen *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		linesScanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_scanned_total",
			Help:      "Log lines attributed to an IP address",
		}),
		uniqueIPs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unique_ips",
			Help:      "Unique IP addresses per analyzed log object",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		triagedIPs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triaged_ips_total",
			Help:      "IP addresses that exceeded the request threshold",
		}),
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Classification calls by outcome",
		}, []string{"outcome"}),
		parseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Model replies that were not valid JSON",
		}),
		offVocabulary: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "off_vocabulary_findings_total",
			Help:      "Findings whose values fall outside the requested vocabulary",
		}),
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Invocations by result",
		}, []string{"result"}),
		modelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Time spent waiting on the classification endpoint",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		attackTypeSeen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings by probable attack type",
		}, []string{"type"}),
	}
}

func (m *Metrics) ObserveScan(lines, uniqueIPs int) {
	if m == nil {
		return
	}
	m.linesScanned.Add(float64(lines))
	m.uniqueIPs.Observe(float64(uniqueIPs))
}

func (m *Metrics) ObserveTriage(n int) {
	if m == nil {
		return
	}
	m.triagedIPs.Add(float64(n))
}

// ObserveModelCall records one call; outcome is "ok", "parse_failed" or "error"
func (m *Metrics) ObserveModelCall(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(outcome).Inc()
	m.modelLatency.Observe(seconds)
	if outcome == "parse_failed" {
		m.parseFailures.Inc()
	}
}

// ObserveFinding counts a finding by attack type. Types outside the known
// vocabulary share the "other" label.
func (m *Metrics) ObserveFinding(attackType string) {
	if m == nil {
		return
	}
	if !slices.Contains(protocol.AttackTypes, attackType) {
		attackType = otherAttackType
	}
	m.attackTypeSeen.WithLabelValues(attackType).Inc()
}

func (m *Metrics) ObserveOffVocabulary() {
	if m == nil {
		return
	}
	m.offVocabulary.Inc()
}

// ObserveInvocation records the run result: "findings", "no_findings" or "failed"
func (m *Metrics) ObserveInvocation(result string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(result).Inc()
}
