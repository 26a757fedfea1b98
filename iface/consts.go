package iface

const (
	// MaxDrainLoops caps how many work/close drain passes run per
	// notifier wake before the loop returns to polling.
	MaxDrainLoops int = 8

	// HeartbeatMs is the period of the connection heartbeat timer.
	HeartbeatMs int64 = 1000

	MaxStreamBufferCap int = 64 << 10
	ReadBufferSize     int = 8 << 10
	IovMax             int = 1024
)
