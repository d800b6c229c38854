package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveQuery_DefaultsTable(t *testing.T) {
	before := testutil.CollectAndCount(DatabaseQueryLatency)
	ObserveQuery("query", "", time.Now())
	assert.GreaterOrEqual(t, testutil.CollectAndCount(DatabaseQueryLatency), before)
}

func TestReportsRejected_ByReason(t *testing.T) {
	before := testutil.ToFloat64(ReportsRejected.WithLabelValues(RejectReasonPost))
	ReportsRejected.WithLabelValues(RejectReasonPost).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReportsRejected.WithLabelValues(RejectReasonPost)))
}
