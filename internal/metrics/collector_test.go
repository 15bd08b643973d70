package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/filesaga"
	"github.com/hupe1980/filesaga/fault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ filesaga.MetricsCollector = (*Collector)(nil)

func TestCollector_RecordCreate(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordCreate(10*time.Millisecond, nil)
	c.RecordCreate(20*time.Millisecond, nil)
	c.RecordCreate(5*time.Millisecond, fault.Conflict("file already exists"))
	c.RecordCreate(5*time.Millisecond, fault.TransientServer("retry", nil))
	c.RecordCreate(5*time.Millisecond, fault.DB("creating file failed", errors.New("boom")))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.createTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.createTotal.WithLabelValues(ResultConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.createTotal.WithLabelValues(ResultTransient)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.createTotal.WithLabelValues(ResultError)))

	assert.Equal(t, 1, testutil.CollectAndCount(c.createDuration))
}

func TestCollector_RecordCompensation(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordCompensation(nil)
	c.RecordCompensation(errors.New("throttled"))
	c.RecordCompensation(nil)

	expected := `
# HELP filesaga_compensation_total Total number of master entry compensations by result
# TYPE filesaga_compensation_total counter
filesaga_compensation_total{result="error"} 1
filesaga_compensation_total{result="ok"} 2
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "filesaga_compensation_total")
	require.NoError(t, err)
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultOK, resultOf(nil))
	assert.Equal(t, ResultArgument, resultOf(fault.Argument("x")))
	assert.Equal(t, ResultForbidden, resultOf(fault.Forbidden("x")))
	assert.Equal(t, ResultNotFound, resultOf(fault.NotFound("x")))
	assert.Equal(t, ResultError, resultOf(errors.New("x")))
}
