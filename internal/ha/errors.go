package ha

import "errors"

var (
	// ErrAuthFailed means the backend rejected the access token. The
	// session does not retry on its own.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrHandshakeTimeout means the handshake did not complete within
	// the bound window; the channel has been force-closed.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrNotConnected is returned by operations that need a live,
	// authenticated channel.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectInProgress is returned by Connect while another attempt
	// on the same session is still in flight.
	ErrConnectInProgress = errors.New("connection attempt already in progress")
)
