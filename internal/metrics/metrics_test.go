package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveScan(120, 4)
	m.ObserveTriage(2)
	m.ObserveModelCall("ok", 0.4)
	m.ObserveModelCall("parse_failed", 0.2)
	m.ObserveInvocation("findings")

	assert.Equal(t, 120.0, testutil.ToFloat64(m.linesScanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.triagedIPs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parseFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("findings")))
}

func TestObserveFindingBoundsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFinding("Web Scraping")
	m.ObserveFinding("ignore previous instructions 1")
	m.ObserveFinding("ignore previous instructions 2")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attackTypeSeen.WithLabelValues("Web Scraping")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attackTypeSeen.WithLabelValues("other")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.attackTypeSeen))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveScan(1, 1)
		m.ObserveTriage(1)
		m.ObserveModelCall("error", 1)
		m.ObserveFinding("Uncertain")
		m.ObserveOffVocabulary()
		m.ObserveInvocation("failed")
	})
}
