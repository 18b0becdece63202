package hamqth

import "errors"

var (
	ErrNoCredentials        = errors.New("hamqth: username and password have not been set")
	ErrAuthenticationFailed = errors.New("hamqth: login failed")
	ErrCallsignNotFound     = errors.New("hamqth: callsign not found")
	ErrProtocol             = errors.New("hamqth: unexpected response")
	ErrMalformedResponse    = errors.New("hamqth: malformed xml response")
	ErrRetryExhausted       = errors.New("hamqth: number of attempts exceeded")
)

// errTransient marks failures that are worth another attempt.
var errTransient = errors.New("transient failure")

// service messages
const (
	msgCallsignNotFound = "Callsign not found"
	msgSessionExpired   = "Session does not exist or expired"
)
