package redisx

import "time"

const (
	// Processed stock-change messages: dedup:{service}:{message_id}
	KeyDedup = "dedup:%s:%s"
)

var TTLDedup = 48 * time.Hour
