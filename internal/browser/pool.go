package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/resilience"
)

// Mode selects which browser backend an acquisition is routed to (§4.4).
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// Lease is a leased browser context for exactly one session. Release is
// idempotent and must run on every exit path per §4.4's contract.
type Lease struct {
	Driver      Driver
	Mode        Mode
	LiveViewURL string

	pool       *Pool
	browserCtx playwright.BrowserContext
	released   int32
}

// Release returns the lease's resources to the pool. Safe to call more than
// once and safe to call after the session failed or was cancelled.
func (l *Lease) Release() {
	if !atomic.CompareAndSwapInt32(&l.released, 0, 1) {
		return
	}
	if l.Driver != nil {
		l.Driver.Close()
	}
	if l.browserCtx != nil {
		l.browserCtx.Close()
	}
	l.pool.release(l.Mode)
}

// CloudProvider abstracts a remote-browser vendor: obtain a websocket
// connect endpoint plus a live-view URL for screencast embedding. No vendor
// SDK is wired because §6 only specifies a connect endpoint and a
// live_view_url string — whatever provider is configured need only hand
// those back.
type CloudProvider interface {
	RequestSession(ctx context.Context) (wsEndpoint, liveViewURL string, err error)
}

// Config configures a Pool.
type Config struct {
	MaxConcurrentSessions int
	AcquireDeadline       time.Duration
	FailoverCooldown      time.Duration
	ViewportWidth         int
	ViewportHeight        int
	Headless              bool
	UserAgent             string
}

// DefaultConfig returns the config implied by spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSessions: 5,
		AcquireDeadline:       120 * time.Second,
		FailoverCooldown:      300 * time.Second,
		ViewportWidth:         1280,
		ViewportHeight:        800,
		Headless:              true,
		UserAgent:             "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 UsabilityStudio/1.0",
	}
}

// Pool supplies configured browser contexts per session and survives a
// cloud-provider outage by transparent failover to local (§4.4). It is the
// sole mutator of browser-session lifecycle (§5).
//
// The cloud→local failover state machine is implemented directly on top of
// internal/resilience.CircuitBreaker rather than a hand-rolled one: "3
// consecutive cloud failures within 5 minutes" is exactly a circuit breaker
// trip condition, and "failover_active for FAILOVER_COOLDOWN" is exactly its
// open-state Timeout. There is no background health probe: once the cooldown
// lapses the breaker goes half-open, and the next cloud acquisition is the
// probe whose success clears failover. Nothing retries cloud on a fixed
// interval while failover is active.
type Pool struct {
	cfg      Config
	cloud    CloudProvider
	logger   *zap.Logger
	pw       *playwright.Playwright
	local    playwright.Browser
	failover *resilience.CircuitBreaker

	sem chan struct{}

	mu            sync.Mutex
	activeByMode  map[Mode]int
	crashCount    int64
	startedAt     time.Time
}

// NewPool starts a local Playwright/Chromium instance (the one browser
// process local-mode leases share) and prepares the failover breaker for
// cloud acquisitions. cloud may be nil, in which case every acquisition mode
// resolves to local.
func NewPool(cfg Config, cloud CloudProvider, logger *zap.Logger) (*Pool, error) {
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = DefaultConfig().MaxConcurrentSessions
	}
	if cfg.AcquireDeadline <= 0 {
		cfg.AcquireDeadline = DefaultConfig().AcquireDeadline
	}
	if cfg.FailoverCooldown <= 0 {
		cfg.FailoverCooldown = DefaultConfig().FailoverCooldown
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	local, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching local browser: %w", err)
	}

	p := &Pool{
		cfg:          cfg,
		cloud:        cloud,
		logger:       logger,
		pw:           pw,
		local:        local,
		sem:          make(chan struct{}, cfg.MaxConcurrentSessions),
		activeByMode: make(map[Mode]int),
		startedAt:    time.Now(),
	}

	p.failover = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "browser-pool-cloud",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     cfg.FailoverCooldown,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
			if logger != nil {
				logger.Warn("browser pool cloud failover state change",
					zap.String("from", from.String()), zap.String("to", to.String()))
			}
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})

	return p, nil
}

// Acquire supplies a configured browser context for one session, bounded by
// MaxConcurrentSessions via a FIFO wait on the pool's semaphore. Expiry of
// the acquire deadline fails the session (not the study) with a typed
// BrowserAcquisitionTimeout.
func (p *Pool) Acquire(ctx context.Context, mode Mode, sessionID string) (*Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireDeadline)
	defer cancel()

	start := time.Now()
	select {
	case p.sem <- struct{}{}:
	case <-waitCtx.Done():
		return nil, domain.ErrBrowserAcquisitionTimeout(time.Since(start))
	}

	lease, err := p.acquireLocked(waitCtx, mode, sessionID)
	if err != nil {
		<-p.sem
		return nil, err
	}
	return lease, nil
}

func (p *Pool) acquireLocked(ctx context.Context, mode Mode, sessionID string) (*Lease, error) {
	resolvedMode := mode
	if resolvedMode == "" {
		resolvedMode = ModeLocal
	}

	if resolvedMode == ModeCloud && p.cloud != nil && p.failover.State() != resilience.StateOpen {
		lease, err := p.acquireCloud(ctx, sessionID)
		if err == nil {
			p.trackMode(ModeCloud)
			return lease, nil
		}
		if p.logger != nil {
			p.logger.Warn("cloud browser acquisition failed, falling back to local",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	lease, err := p.acquireLocal(sessionID)
	if err != nil {
		return nil, domain.ErrBrowserAcquisition("local", err)
	}
	p.trackMode(ModeLocal)
	return lease, nil
}

func (p *Pool) acquireCloud(ctx context.Context, sessionID string) (*Lease, error) {
	result, err := p.failover.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		wsEndpoint, liveViewURL, err := p.cloud.RequestSession(ctx)
		if err != nil {
			return nil, err
		}
		remote, err := p.pw.Chromium.Connect(wsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("connecting to cloud browser: %w", err)
		}
		browserCtx, page, err := p.newContextAndPage(remote)
		if err != nil {
			remote.Close()
			return nil, err
		}
		return &Lease{
			Driver:      newPlaywrightDriver(page, p.cfg.ViewportWidth, p.cfg.ViewportHeight),
			Mode:        ModeCloud,
			LiveViewURL: liveViewURL,
			pool:        p,
			browserCtx:  browserCtx,
		}, nil
	})
	if err != nil {
		// cloud failures are tracked by the circuit breaker, not crash_count
		return nil, domain.ErrBrowserAcquisition("cloud", err)
	}
	return result.(*Lease), nil
}

func (p *Pool) acquireLocal(sessionID string) (*Lease, error) {
	browserCtx, page, err := p.newContextAndPage(p.local)
	if err != nil {
		atomic.AddInt64(&p.crashCount, 1)
		return nil, err
	}
	return &Lease{
		Driver: newPlaywrightDriver(page, p.cfg.ViewportWidth, p.cfg.ViewportHeight),
		Mode:   ModeLocal,
		pool:   p,
		browserCtx: browserCtx,
	}, nil
}

func (p *Pool) newContextAndPage(b playwright.Browser) (playwright.BrowserContext, playwright.Page, error) {
	browserCtx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  p.cfg.ViewportWidth,
			Height: p.cfg.ViewportHeight,
		},
		UserAgent: playwright.String(p.cfg.UserAgent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}
	return browserCtx, page, nil
}

func (p *Pool) release(mode Mode) {
	<-p.sem
	p.mu.Lock()
	if p.activeByMode[mode] > 0 {
		p.activeByMode[mode]--
	}
	p.mu.Unlock()
}

func (p *Pool) trackMode(mode Mode) {
	p.mu.Lock()
	p.activeByMode[mode]++
	p.mu.Unlock()
}

// Stats is the health endpoint's pool surface, per §4.4's exact field set.
// MemoryMB is always 0: nothing in this module samples per-browser-process
// RSS (no vendor SDK or OS-level sampler is wired for it, see DESIGN.md).
type Stats struct {
	Mode           string `json:"mode"`
	ActiveSessions int    `json:"active_sessions"`
	UptimeSeconds  int64  `json:"uptime_s"`
	CrashCount     int64  `json:"crash_count"`
	FailoverActive bool   `json:"failover_active"`
	MemoryMB       int64  `json:"memory_mb"`
}

// Stats reports the pool's current health surface.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	active := p.activeByMode[ModeLocal] + p.activeByMode[ModeCloud]
	p.mu.Unlock()

	mode := string(ModeLocal)
	if p.cloud != nil {
		mode = string(ModeCloud)
	}

	return Stats{
		Mode:           mode,
		ActiveSessions: active,
		UptimeSeconds:  int64(time.Since(p.startedAt).Seconds()),
		CrashCount:     atomic.LoadInt64(&p.crashCount),
		FailoverActive: p.failover.State() == resilience.StateOpen,
	}
}

// Close tears down the local browser and stops the Playwright driver
// process. Leases already handed out must be released independently.
func (p *Pool) Close() error {
	if p.local != nil {
		p.local.Close()
	}
	if p.pw != nil {
		return p.pw.Stop()
	}
	return nil
}
