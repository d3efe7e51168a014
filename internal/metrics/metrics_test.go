package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/damione1/poker-rooms/internal/metrics"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := metrics.New()

	m.IncrementConnections()
	m.IncrementConnections()
	m.DecrementConnections()
	m.IncrementRooms()
	m.IncrementMessagesReceived()
	m.IncrementMessagesSent()
	m.IncrementBroadcastErrors()
	m.IncrementRateLimitViolations()
	m.IncrementHibernations()
	m.IncrementResumes()

	snapshot := m.Snapshot()

	assert.Equal(t, int64(1), snapshot.ActiveConnections)
	assert.Equal(t, int64(2), snapshot.TotalConnections)
	assert.Equal(t, int64(1), snapshot.ActiveRooms)
	assert.Equal(t, int64(1), snapshot.MessagesReceived)
	assert.Equal(t, int64(1), snapshot.MessagesSent)
	assert.Equal(t, int64(1), snapshot.BroadcastErrors)
	assert.Equal(t, int64(1), snapshot.RateLimitViolations)
	assert.Equal(t, int64(1), snapshot.RoomsHibernated)
	assert.Equal(t, int64(1), snapshot.RoomsResumed)
	assert.NotEqual(t, "never", snapshot.LastMessageTime)
	assert.Equal(t, "healthy", snapshot.HealthStatus)
}

func TestMetrics_LastMessageTimeDefaults(t *testing.T) {
	snapshot := metrics.New().Snapshot()
	assert.Equal(t, "never", snapshot.LastMessageTime)
	assert.GreaterOrEqual(t, snapshot.NumGoroutines, 1)
}
