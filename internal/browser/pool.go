package browser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool hands out browser sessions to concurrent flows so they never share
// navigation state. Sessions are created lazily up to maxSize; Acquire
// blocks when the pool is exhausted.
type Pool struct {
	config    Config
	sessions  chan *Session
	active    map[*Session]bool
	maxSize   int
	create    func() (*Session, error)
	logger    *zap.Logger
	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func NewPool(config Config, maxSize int, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	p := &Pool{
		config:   config,
		sessions: make(chan *Session, maxSize),
		active:   make(map[*Session]bool),
		maxSize:  maxSize,
		logger:   logger.With(zap.String("component", "browser_pool")),
	}
	p.create = func() (*Session, error) { return NewSession(config, logger) }
	return p
}

// Acquire returns a session for exclusive use. The caller must Release it on
// every exit path, faults included.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("browser pool is closed")
	}
	p.mu.Unlock()

	select {
	case s := <-p.sessions:
		p.mu.Lock()
		p.active[s] = true
		p.mu.Unlock()
		p.logger.Debug("acquired session from pool")
		return s, nil
	default:
	}

	p.mu.Lock()
	total := len(p.active) + len(p.sessions)
	if total >= p.maxSize {
		p.mu.Unlock()
		p.logger.Debug("pool exhausted, waiting for a session")
		select {
		case s := <-p.sessions:
			p.mu.Lock()
			p.active[s] = true
			p.mu.Unlock()
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Unlock()

	s, err := p.create()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	p.mu.Lock()
	p.active[s] = true
	p.mu.Unlock()
	p.logger.Debug("created new session")
	return s, nil
}

func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	delete(p.active, s)

	if p.closed {
		p.mu.Unlock()
		_ = s.Close()
		return
	}

	// Return inside the lock so Close cannot close the channel in between.
	select {
	case p.sessions <- s:
		p.mu.Unlock()
		p.logger.Debug("session returned to pool")
	default:
		p.mu.Unlock()
		_ = s.Close()
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	for s := range p.active {
		_ = s.Close()
	}
	p.active = make(map[*Session]bool)
	p.closeOnce.Do(func() { close(p.sessions) })
	p.mu.Unlock()

	for s := range p.sessions {
		_ = s.Close()
	}
	return nil
}

func (p *Pool) Stats() (idle, active int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions), len(p.active)
}
