package realtime

import "time"

const (
	// Clients only send small control frames.
	maxFrameBytes = 4 << 10

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound events per window.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)
