package rental

import (
	"sync"

	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/metrics"
)

var agreementTransitions = map[AgreementStatus][]AgreementStatus{
	AgreementPending: {AgreementActive},
	AgreementActive:  {AgreementCompleted, AgreementTerminated, AgreementDisputed},
}

// ValidTransition reports whether an agreement may move from one status to another.
// Staying in the same status is always valid.
func ValidTransition(from, to AgreementStatus) bool {
	if from == to {
		return true
	}
	for _, next := range agreementTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusMonitor remembers the last observed status of each agreement and flags observations
// that skip or reverse the lifecycle. The chain value is always kept.
type StatusMonitor struct {
	mu   sync.Mutex
	seen map[uint64]AgreementStatus
	log  interfaces.ILogger
}

func NewStatusMonitor(log interfaces.ILogger) *StatusMonitor {
	return &StatusMonitor{seen: make(map[uint64]AgreementStatus), log: log}
}

// Observe records the status and returns false when the change is outside the lifecycle
func (m *StatusMonitor) Observe(id uint64, status AgreementStatus) bool {
	m.mu.Lock()
	prev, ok := m.seen[id]
	m.seen[id] = status
	m.mu.Unlock()

	if !ok || ValidTransition(prev, status) {
		return true
	}
	m.log.Warnf("agreement %d moved from %s to %s, keeping on-chain status", id, prev, status)
	metrics.RecordStatusAnomaly()
	return false
}

func (m *StatusMonitor) Forget(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
}
