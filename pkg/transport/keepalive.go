package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPingTimeout is the default time a ping may take.
	DefaultPingTimeout = 5 * time.Second

	// DefaultMaxMissedPings is the default number of failed pings before
	// the connection is considered dead.
	DefaultMaxMissedPings = 3

	// MaxDetectionDelay is the maximum time to detect connection loss.
	// Calculated as: PingInterval * MaxMissedPings + PingTimeout
	// Default: 30 * 3 + 5 = 95 seconds
	MaxDetectionDelay = 95 * time.Second
)

// Pinger checks that the peer answers. gateway.Gateway satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings.
	PingInterval time.Duration

	// PingTimeout bounds each ping.
	PingTimeout time.Duration

	// MaxMissedPings is the number of consecutive failures before timeout.
	MaxMissedPings int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PingTimeout:    DefaultPingTimeout,
		MaxMissedPings: DefaultMaxMissedPings,
	}
}

// DetectionDelay calculates the maximum detection delay for this configuration.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPings) + c.PingTimeout
}

// KeepAlive pings a peer periodically and reports when it stops answering.
type KeepAlive struct {
	config KeepAliveConfig
	pinger Pinger

	onTimeout func()
	onPing    func(latency time.Duration, err error)

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	done         chan struct{}
	missed       int
	pings        uint32
	lastPingTime time.Time
	lastOKTime   time.Time
	lastLatency  time.Duration
}

// NewKeepAlive creates a keep-alive monitor. onTimeout runs once, on the
// monitor goroutine, when MaxMissedPings consecutive pings failed.
func NewKeepAlive(config KeepAliveConfig, pinger Pinger, onTimeout func()) *KeepAlive {
	if config.PingInterval == 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PingTimeout == 0 {
		config.PingTimeout = DefaultPingTimeout
	}
	if config.MaxMissedPings == 0 {
		config.MaxMissedPings = DefaultMaxMissedPings
	}

	return &KeepAlive{
		config:    config,
		pinger:    pinger,
		onTimeout: onTimeout,
	}
}

// SetPingCallback sets a callback invoked after every ping.
func (ka *KeepAlive) SetPingCallback(cb func(latency time.Duration, err error)) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	ka.onPing = cb
}

// Start begins the monitoring loop. It is a no-op when already running.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.missed = 0
	ka.stopCh = make(chan struct{})
	ka.done = make(chan struct{})
	stopCh, done := ka.stopCh, ka.done
	ka.mu.Unlock()

	go ka.loop(ctx, stopCh, done)
}

// Stop ends the monitoring loop and waits for it to exit.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	if !ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = false
	close(ka.stopCh)
	done := ka.done
	ka.mu.Unlock()

	<-done
}

// IsRunning returns true if keep-alive monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastPingTime: ka.lastPingTime,
		LastOKTime:   ka.lastOKTime,
		LastLatency:  ka.lastLatency,
		MissedPings:  ka.missed,
		Pings:        ka.pings,
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastPingTime time.Time
	LastOKTime   time.Time
	LastLatency  time.Duration
	MissedPings  int
	Pings        uint32
}

// loop is the main keep-alive monitoring loop.
func (ka *KeepAlive) loop(ctx context.Context, stopCh, done chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ka.exit(done)
			return
		case <-stopCh:
			close(done)
			return
		case <-ticker.C:
			if ka.ping(ctx) {
				continue
			}
			// Connection considered dead
			ka.exit(done)
			if ka.onTimeout != nil {
				ka.onTimeout()
			}
			return
		}
	}
}

// exit marks the monitor stopped from the loop side.
func (ka *KeepAlive) exit(done chan struct{}) {
	ka.mu.Lock()
	if ka.done == done {
		ka.running = false
	}
	ka.mu.Unlock()
	close(done)
}

// ping sends one ping and reports whether the peer is still considered alive.
func (ka *KeepAlive) ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, ka.config.PingTimeout)
	start := time.Now()
	err := ka.pinger.Ping(pingCtx)
	cancel()
	latency := time.Since(start)

	ka.mu.Lock()
	ka.pings++
	ka.lastPingTime = start
	if err == nil {
		ka.missed = 0
		ka.lastOKTime = time.Now()
		ka.lastLatency = latency
	} else {
		ka.missed++
	}
	alive := ka.missed < ka.config.MaxMissedPings
	cb := ka.onPing
	ka.mu.Unlock()

	if cb != nil {
		cb(latency, err)
	}
	return alive
}

// CalculateDetectionDelay calculates the maximum detection delay for given parameters.
func CalculateDetectionDelay(pingInterval, pingTimeout time.Duration, maxMissedPings int) time.Duration {
	return pingInterval*time.Duration(maxMissedPings) + pingTimeout
}
