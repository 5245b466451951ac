package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Resolves.WithLabelValues(DirectionCross, "fam"))
	Resolves.WithLabelValues(DirectionCross, "fam").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Resolves.WithLabelValues(DirectionCross, "fam")))

	SourceRows.WithLabelValues("arrow", "ind").Add(5)
	assert.GreaterOrEqual(t, testutil.ToFloat64(SourceRows.WithLabelValues("arrow", "ind")), 5.0)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("index_build")
	time.Sleep(time.Millisecond)
	d := timer.Stop()
	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, "index_build", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), d)
}
