package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStage(t *testing.T) {
	RecordStage("normalize", 10*time.Millisecond)

	observer := StageDuration.WithLabelValues("normalize")

	metric := &dto.Metric{}
	assert.NoError(t, observer.(prometheus.Histogram).Write(metric))
	assert.True(t, metric.GetHistogram().GetSampleCount() > 0)
}

func TestRecordRequest(t *testing.T) {
	initial := testutil.ToFloat64(RequestsTotal.WithLabelValues("ok"))

	RecordRequest("ok")

	final := testutil.ToFloat64(RequestsTotal.WithLabelValues("ok"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordGateVerdict(t *testing.T) {
	initial := testutil.ToFloat64(GateVerdictsTotal.WithLabelValues("retry"))

	RecordGateVerdict("retry")

	final := testutil.ToFloat64(GateVerdictsTotal.WithLabelValues("retry"))
	assert.Equal(t, initial+1.0, final)
}

func TestRecordSessionTransition(t *testing.T) {
	initial := testutil.ToFloat64(SessionTransitionsTotal.WithLabelValues("complete"))

	RecordSessionTransition("complete")

	final := testutil.ToFloat64(SessionTransitionsTotal.WithLabelValues("complete"))
	assert.Equal(t, initial+1.0, final)
}
