package domain

import "github.com/pkg/errors"

// Error taxonomy shared by every service. Callers match with errors.Is; the
// broker adapter translates KIS-specific failures into these before they leave
// the package.
var (
	// ErrValidation marks caller-supplied data as malformed. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrAuth marks credentials as invalid. Fatal, never retried.
	ErrAuth = errors.New("authentication failed")
	// ErrTransient marks a network or broker-side transient failure. Retried
	// with bounded backoff, then surfaced.
	ErrTransient = errors.New("transient broker error")
	// ErrRateLimited is surfaced immediately for order placement; read
	// operations wait for a limiter slot instead.
	ErrRateLimited = errors.New("rate limited")
	// ErrInsufficientData means the indicator window is too short or flat.
	// Scans degrade the symbol to HOLD rather than failing the batch.
	ErrInsufficientData = errors.New("insufficient data for indicators")
	// ErrDataUnavailable means the broker returned no usable price series.
	ErrDataUnavailable = errors.New("no usable market data")
)
