package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor manages a private Tor daemon started through tornago, so that
// .onion targets can be crawled without a system Tor installation.
//
// Bootstrapping takes 1-3 minutes while Tor fetches directory information
// and builds its first circuits.
type EmbeddedTor struct {
	mu sync.Mutex

	process     *tornago.TorProcess
	socksAddr   string
	controlAddr string

	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
// Non-positive values keep the default.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start to launch the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultStartupTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start launches the daemon on OS-assigned ports and waits until it has
// bootstrapped, the startup timeout expires, or ctx is done. A daemon that
// finishes starting after ctx is done is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type startResult struct {
		process *tornago.TorProcess
		err     error
	}
	done := make(chan startResult, 1)

	go func() {
		process, err := tornago.StartTorDaemon(launchCfg)
		done <- startResult{process: process, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", r.err)
		}
		e.mu.Lock()
		e.process = r.process
		e.socksAddr = r.process.SocksAddr()
		e.controlAddr = r.process.ControlAddr()
		e.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil && r.process != nil {
				_ = r.process.Stop()
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. It is safe to call on an unstarted instance
// and more than once.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.process == nil {
		return nil
	}

	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address ("host:port") of the running daemon,
// or "" when it is not running.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socksAddr
}

// ControlAddr returns the control port address, or "" when not running.
func (e *EmbeddedTor) ControlAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlAddr
}

// IsRunning reports whether the daemon is running.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// NewClient returns a Client for the daemon's SOCKS port.
func (e *EmbeddedTor) NewClient(timeout time.Duration) (*Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrTorNotRunning
	}
	return NewClient(addr, timeout)
}
