package types

import "errors"

// ErrSessionUnavailable marks a failed cross-account session acquisition.
// The sweep treats targets behind it as not applicable rather than failed:
// the account either has no trust relationship or cannot be reached, and
// neither condition is a per-resource error.
var ErrSessionUnavailable = errors.New("cross-account session unavailable")
