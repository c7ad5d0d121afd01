// Package transport provides the network layer: dialing as an
// initiator, listening as an acceptor, and SOH-delimited message framing.
// Reconnection uses github.com/cenkalti/backoff/v4 for exponential backoff
// between attempts.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// InitiatorConfig configures an outbound connection to an acceptor.
type InitiatorConfig struct {
	Host string
	Port int

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// UseTLS wraps the TCP connection in a TLS client handshake.
	UseTLS    bool
	TLSConfig *tls.Config

	// ReconnectInitialInterval/MaxInterval/MaxElapsedTime tune the backoff
	// policy Reconnect uses between attempts. Zero values fall back to
	// backoff.NewExponentialBackOff's defaults.
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
	ReconnectMaxElapsedTime  time.Duration
}

// Initiator dials the remote acceptor, optionally retrying with exponential
// backoff until ctx is canceled or the backoff policy gives up.
type Initiator struct {
	cfg InitiatorConfig
}

// NewInitiator returns an Initiator for cfg.
func NewInitiator(cfg InitiatorConfig) *Initiator {
	return &Initiator{cfg: cfg}
}

// Dial makes a single connection attempt, respecting ctx and DialTimeout.
func (i *Initiator) Dial(ctx context.Context) (net.Conn, error) {
	dialCtx := ctx
	var cancel context.CancelFunc
	if i.cfg.DialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, i.cfg.DialTimeout)
		defer cancel()
	}

	addr := fmt.Sprintf("%s:%d", i.cfg.Host, i.cfg.Port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if i.cfg.UseTLS {
		tlsConn := tls.Client(conn, i.cfg.TLSConfig)
		if deadline, ok := dialCtx.Deadline(); ok {
			if err := tlsConn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, fmt.Errorf("set TLS handshake deadline: %w", err)
			}
		}
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake with %s: %w", addr, err)
		}
		return tlsConn, nil
	}

	return conn, nil
}

// Reconnect retries Dial with exponential backoff until it succeeds, ctx is
// canceled, or the backoff policy's MaxElapsedTime elapses.
func (i *Initiator) Reconnect(ctx context.Context) (net.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	if i.cfg.ReconnectInitialInterval > 0 {
		bo.InitialInterval = i.cfg.ReconnectInitialInterval
	}
	if i.cfg.ReconnectMaxInterval > 0 {
		bo.MaxInterval = i.cfg.ReconnectMaxInterval
	}
	bo.MaxElapsedTime = i.cfg.ReconnectMaxElapsedTime // 0 = retry forever

	var conn net.Conn
	operation := func() error {
		c, err := i.Dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	return conn, nil
}
