package engine

import (
	"time"

	"github.com/marmos91/fixengine/pkg/message"
)

// Config carries the per-session options the engine itself consumes.
// Field names follow the engine's configuration options; it is deliberately a plain
// struct rather than pkg/config.Config so this package has no dependency on
// the viper/mapstructure loading pipeline — pkg/config produces one of
// these after loading and validating a file.
type Config struct {
	BeginString  string
	SenderCompID string
	TargetCompID string

	// IsInitiator selects which half of the state transition table applies:
	// Connecting->LogonInProgress (initiator) or Disconnected->AwaitingLogon
	// (acceptor).
	IsInitiator bool

	HeartBtInt         time.Duration
	ResetSeqNumOnLogon bool

	LogonTimeout  time.Duration
	LogoutTimeout time.Duration

	// RequireCredentials/ValidateCredentials support an optional
	// acceptor-side Logon credential check. ValidateCredentials is nil when
	// RequireCredentials is false.
	RequireCredentials  bool
	ValidateCredentials func(msg *message.Message) error
}

// SessionID derives the immutable SessionID triple from the config.
func (c Config) SessionID() message.SessionID {
	return message.SessionID{
		BeginString:  c.BeginString,
		SenderCompID: c.SenderCompID,
		TargetCompID: c.TargetCompID,
	}
}

func (c Config) applyDefaults() Config {
	if c.HeartBtInt == 0 {
		c.HeartBtInt = 30 * time.Second
	}
	if c.LogonTimeout == 0 {
		c.LogonTimeout = 30 * time.Second
	}
	if c.LogoutTimeout == 0 {
		c.LogoutTimeout = 10 * time.Second
	}
	return c
}

// Callbacks is the five-callback application interface.
type Callbacks struct {
	OnCreate func(sessionID message.SessionID)
	OnLogon  func(sessionID message.SessionID)

	// OnLogout is invoked, with a human-readable reason (empty for a clean
	// logoff), when the session is disconnected through Disconnect or
	// RequestLogoff, by a transport error, or by a handler's Disconnect call
	// (including the Logout handshake). It is not invoked when the session
	// drops after a LogoutAndDisconnect or ForceDisconnect handler outcome
	// or after a fatal header or sequence-number violation.
	OnLogout func(sessionID message.SessionID, reason string)

	OnMessageFromApp func(msg *message.Message, sessionID message.SessionID)

	// ToApp is the pre-send hook for application messages; returning an
	// error aborts the send (the application vetoed it).
	ToApp func(msg *message.Message, sessionID message.SessionID) error
}
