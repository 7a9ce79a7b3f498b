package ratelimiter

import (
	"time"
)

const (
	defaultBurst  = 1
	idleKeyTTL    = 10 * time.Minute
	pruneInterval = 256
)
