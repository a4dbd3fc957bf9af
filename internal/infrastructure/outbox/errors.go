package outbox

import "errors"

var ErrStopped = errors.New("outbox: bus stopped")
