package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/rentchain/rental-client/internal/errors"
)

type State string

const (
	StateIdle           State = "idle"
	StateNetworkChecked State = "network-checked"
	StateSubmitted      State = "submitted"
	StateConfirmed      State = "confirmed"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Status is one transition of a flow. Step is 1-based and zero outside of steps.
type Status struct {
	FlowID    string    `json:"flowId"`
	Flow      string    `json:"flow"`
	State     State     `json:"state"`
	Step      int       `json:"step,omitempty"`
	StepCount int       `json:"stepCount"`
	StepName  string    `json:"stepName,omitempty"`
	TxHash    string    `json:"txHash,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

type Observer func(Status)

type options struct {
	flowID   string
	observer Observer
}

type Option func(*options)

// WithFlowID runs the flow under a caller chosen id, used when the id is returned before the flow ends
func WithFlowID(id string) Option {
	return func(o *options) { o.flowID = id }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.flowID == "" {
		o.flowID = uuid.NewString()
	}
	return o
}

// Result summarizes a finished flow
type Result struct {
	FlowID   string   `json:"flowId"`
	Flow     string   `json:"flow"`
	Steps    []string `json:"steps"`
	TxHashes []string `json:"txHashes"`
	// EntityID is the id of a record created by the flow, when the receipt announced it
	EntityID *uint64 `json:"entityId,omitempty"`
	Message  string  `json:"message"`
	// Detail carries the flow specific outcome such as a refreshed record
	Detail interface{} `json:"detail,omitempty"`
}

// FlowError is the failure of a flow. It keeps the steps that were confirmed before the
// failing one, those are never rolled back.
type FlowError struct {
	FlowID     string
	Flow       string
	Completed  []string
	FailedStep string
	Err        error
}

func (e *FlowError) Error() string {
	return progressMessage(e.Completed, e.FailedStep, errors.UserMessage(e.Err))
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func progressMessage(completed []string, failed string, reason string) string {
	var b strings.Builder
	if len(completed) > 0 {
		b.WriteString(strings.Join(completed, " and "))
		b.WriteString(" succeeded, ")
	}
	if failed != "" {
		fmt.Fprintf(&b, "%s failed: %s", failed, reason)
	} else {
		b.WriteString(reason)
	}
	return b.String()
}

// flowLog remembers the latest status of recent flows
type flowLog struct {
	mu     sync.Mutex
	order  *deque.Deque[string]
	latest map[string]Status
	cap    int
}

func newFlowLog(capacity int) *flowLog {
	if capacity <= 0 {
		capacity = 64
	}
	return &flowLog{
		order:  deque.New[string](capacity, capacity),
		latest: make(map[string]Status, capacity),
		cap:    capacity,
	}
}

func (l *flowLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.latest[s.FlowID]; !ok {
		if l.order.Len() == l.cap {
			delete(l.latest, l.order.PopFront())
		}
		l.order.PushBack(s.FlowID)
	}
	l.latest[s.FlowID] = s
}

func (l *flowLog) get(id string) (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.latest[id]
	return s, ok
}

// list returns the latest status of every remembered flow, newest first
func (l *flowLog) list() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Status, 0, l.order.Len())
	for i := l.order.Len() - 1; i >= 0; i-- {
		out = append(out, l.latest[l.order.At(i)])
	}
	return out
}
