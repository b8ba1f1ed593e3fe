// Package db holds the OxiDB connection pool shared by the repositories.
package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/formmatic/formmatic/pkg/oxidb"
)

const (
	dialTimeout       = 5 * time.Second
	keepaliveInterval = 10 * time.Second
)

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
type Pool struct {
	host    string
	port    int
	log     *zap.Logger
	clients []*oxidb.Client
	mu      []sync.Mutex
	idx     uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewPool dials size connections and starts the keepalive loop.
func NewPool(ctx context.Context, host string, port, size int, log *zap.Logger) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool: size must be positive, got %d", size)
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		host:    host,
		port:    port,
		log:     log.Named("oxidb"),
		clients: make([]*oxidb.Client, size),
		mu:      make([]sync.Mutex, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		c, err := oxidb.Connect(ctx, host, port, dialTimeout)
		if err != nil {
			p.closeClients()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	go p.keepalive()
	return p, nil
}

// Get returns the next client in round-robin order.
func (p *Pool) Get() *oxidb.Client {
	n := atomic.AddUint64(&p.idx, 1)
	i := int(n % uint64(len(p.clients)))
	p.mu[i].Lock()
	defer p.mu[i].Unlock()
	return p.clients[i]
}

// Size is the number of pooled connections.
func (p *Pool) Size() int {
	return len(p.clients)
}

func (p *Pool) reconnect(i int) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	c, err := oxidb.Connect(ctx, p.host, p.port, dialTimeout)
	if err != nil {
		p.log.Warn("reconnect failed", zap.Int("client", i), zap.Error(err))
		return
	}
	p.mu[i].Lock()
	old := p.clients[i]
	p.clients[i] = c
	p.mu[i].Unlock()
	if old != nil {
		old.Close()
	}
	p.log.Info("reconnected", zap.Int("client", i))
}

func (p *Pool) client(i int) *oxidb.Client {
	p.mu[i].Lock()
	defer p.mu[i].Unlock()
	return p.clients[i]
}

// Ping checks every connection once and reconnects the broken ones.
func (p *Pool) Ping(ctx context.Context) error {
	var firstErr error
	for i := range p.clients {
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		_, err := p.client(i).Ping(pingCtx)
		cancel()
		if err != nil {
			p.log.Warn("ping failed, reconnecting", zap.Int("client", i), zap.Error(err))
			p.reconnect(i)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Pool) keepalive() {
	defer close(p.done)
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			_ = p.Ping(context.Background())
		}
	}
}

// Close stops the keepalive loop and closes all connections.
func (p *Pool) Close() {
	close(p.stop)
	<-p.done
	p.closeClients()
}

func (p *Pool) closeClients() {
	for i := range p.clients {
		if c := p.client(i); c != nil {
			c.Close()
		}
	}
}
