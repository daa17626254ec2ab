package driver

import "errors"

// ErrClosed is returned by driver operations after the underlying page or
// transport has become unavailable.
var ErrClosed = errors.New("page driver is closed")
