package queue

import (
	"github.com/itstheanurag/judgexec/internal/metrics"
	"github.com/itstheanurag/judgexec/internal/records"
)

// Manager buffers run records between the request path and the delivery
// workers. Submitting never blocks a request.
type Manager struct {
	records chan *records.Record
}

func NewManager(capacity int) *Manager {
	return &Manager{
		records: make(chan *records.Record, capacity),
	}
}

// Submit enqueues rec, or drops it when the queue is full.
func (m *Manager) Submit(rec *records.Record) bool {
	select {
	case m.records <- rec:
		m.UpdateQueueMetric()
		return true
	default:
		metrics.RecordsDropped.Inc()
		return false
	}
}

func (m *Manager) Next() <-chan *records.Record {
	return m.records
}

func (m *Manager) Len() int {
	return len(m.records)
}

func (m *Manager) UpdateQueueMetric() {
	metrics.RecordQueueDepth.Set(float64(len(m.records)))
}
