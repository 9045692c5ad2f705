package rig

import "errors"

// ErrSessionClosed retires plans that were alive when the session was
// deliberately shut down.
var ErrSessionClosed = errors.New("rig: session closed")
