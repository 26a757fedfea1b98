package worker

import (
	"time"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkuv/iface"
)

type Options struct {
	MaxDrainLoops   int           // drain passes per wake, default iface.MaxDrainLoops
	HeartbeatMs     int64         // heartbeat period, default iface.HeartbeatMs
	ShutdownTimeout time.Duration // connection-drain budget inside Stop
	CompletionPool  int           // size of the pool fulfilling PostAsync completions
	Trace           iface.Trace
	Lifetime        iface.Lifetime
}

const defaultCompletionPool = 16

func (that *Options) withDefaults() *Options {
	opts := Options{}
	if that != nil {
		opts = *that
	}
	if opts.MaxDrainLoops <= 0 {
		opts.MaxDrainLoops = iface.MaxDrainLoops
	}
	if opts.HeartbeatMs <= 0 {
		opts.HeartbeatMs = iface.HeartbeatMs
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.CompletionPool <= 0 {
		opts.CompletionPool = defaultCompletionPool
	}
	if opts.Trace == nil {
		opts.Trace = stdTrace{}
	}
	if opts.Lifetime == nil {
		opts.Lifetime = nopLifetime{}
	}
	return &opts
}

// stdTrace routes the Trace surface onto the process logger.
type stdTrace struct{}

func (stdTrace) LogError(msg string, err error) {
	if err != nil {
		logger.Errorf("%s: %v", msg, err)
		return
	}
	logger.Errorf("%s", msg)
}

func (stdTrace) LogCritical(msg string, err error) {
	if err != nil {
		logger.Errorf("CRITICAL %s: %v", msg, err)
		return
	}
	logger.Errorf("CRITICAL %s", msg)
}

func (stdTrace) NotAllConnectionsClosedGracefully() {
	logger.Warningf("some connections did not close gracefully while shutting down")
}

func (stdTrace) NotAllConnectionsAborted() {
	logger.Warningf("some connections could not be aborted while shutting down")
}

// nopLifetime stands in when no hosting lifetime is wired.
type nopLifetime struct{}

func (nopLifetime) StopApplication() {}
