package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the connected account and the chain it was observed on
type Session struct {
	Address     common.Address `json:"address"`
	ChainID     uint64         `json:"chainId"`
	IsConnected bool           `json:"isConnected"`
}

type SessionListener func(prev, next Session)

// SessionStore holds the single session of the process
type SessionStore struct {
	mu        sync.RWMutex
	session   Session
	listeners []SessionListener
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *SessionStore) IsConnected() bool {
	return s.Get().IsConnected
}

func (s *SessionStore) Open(addr common.Address, chainID uint64) {
	s.set(Session{Address: addr, ChainID: chainID, IsConnected: true})
}

func (s *SessionStore) SetAddress(addr common.Address) {
	s.mu.RLock()
	next := s.session
	s.mu.RUnlock()

	next.Address = addr
	s.set(next)
}

func (s *SessionStore) Clear() {
	s.set(Session{})
}

// OnChange registers a listener called after every change, outside of the lock
func (s *SessionStore) OnChange(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *SessionStore) set(next Session) {
	s.mu.Lock()
	prev := s.session
	s.session = next
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	if prev == next {
		return
	}
	for _, l := range listeners {
		l(prev, next)
	}
}
