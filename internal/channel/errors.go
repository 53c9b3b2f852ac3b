package channel

import "errors"

var (
	// ErrChannelUnavailable is returned when an operation requires a live
	// channel and none exists. Callers own the retry policy.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrHandshakeRejected indicates the server refused the connection
	// handshake, typically due to a bad or expired credential.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrSendTimeout indicates no acknowledgment arrived within the send
	// timeout. The message may or may not have been persisted server-side.
	ErrSendTimeout = errors.New("send acknowledgment timed out")
	// ErrSendFailed indicates the server acknowledged the send with a failure.
	ErrSendFailed = errors.New("send failed")
	// ErrNoCredential is returned by Connect when the session credential is
	// empty. There is no anonymous channel.
	ErrNoCredential = errors.New("no session credential")
)
