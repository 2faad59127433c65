package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, LoginAttempts)
	assert.NotNil(t, Registrations)
	assert.NotNil(t, ChatRequests)
	assert.NotNil(t, ChatLatency)
	assert.NotNil(t, CSVRowsImported)
	assert.NotNil(t, HTTPRequests)
	assert.NotNil(t, HTTPDuration)
}

func TestCounterIncrements(t *testing.T) {
	c := CSVRowsImported.WithLabelValues("metrics_test")
	before := testutil.ToFloat64(c)
	c.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(c))
}
