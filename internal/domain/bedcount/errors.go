package bedcount

import "errors"

var ErrNegativeCounter = errors.New("bed counters must be non-negative")
