package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// AcceptorConfig configures an inbound listener.
type AcceptorConfig struct {
	Host string
	Port int

	UseTLS    bool
	TLSConfig *tls.Config
}

// Acceptor listens for inbound connections from initiators.
type Acceptor struct {
	cfg      AcceptorConfig
	listener net.Listener
}

// NewAcceptor binds a listener per cfg. Call Close when done.
func NewAcceptor(cfg AcceptorConfig) (*Acceptor, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if cfg.UseTLS {
		l = tls.NewListener(l, cfg.TLSConfig)
	}
	return &Acceptor{cfg: cfg, listener: l}, nil
}

// Accept blocks until a new connection arrives or ctx is canceled.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := a.listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("accept: %w", r.err)
		}
		return r.conn, nil
	}
}

// Addr returns the address the listener is bound to.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Close stops accepting new connections.
func (a *Acceptor) Close() error {
	return a.listener.Close()
}
