// Package lifecycle counts live terminal sessions and drives the optional
// idle shutdown of the whole process.
package lifecycle

import (
	"log"
	"sync"
	"time"

	"github.com/aibidi/aibidi/internal/metrics"
)

// DefaultShutdownDelay leaves time for a browser refresh to reconnect.
const DefaultShutdownDelay = 3 * time.Second

// Config configures a Controller.
type Config struct {
	AutoShutdown bool
	Delay        time.Duration
	// OnIdle runs once the delay has elapsed with no sessions.
	OnIdle func()
}

// Controller owns the process-wide session count and shutdown timer. All
// state changes go through Accept and the release func it returns.
type Controller struct {
	autoShutdown bool
	delay        time.Duration
	onIdle       func()

	mu         sync.Mutex
	active     int
	hadSession bool
	timer      *time.Timer
	generation uint64 // bumped whenever a pending timer is invalidated
	stopped    bool
}

// New creates a controller in the idle state.
func New(cfg Config) *Controller {
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultShutdownDelay
	}
	return &Controller{
		autoShutdown: cfg.AutoShutdown,
		delay:        delay,
		onIdle:       cfg.OnIdle,
	}
}

// Accept records a new session and cancels a pending shutdown. The returned
// func ends the session; calls after the first are ignored.
func (c *Controller) Accept() (release func()) {
	c.mu.Lock()
	c.active++
	c.hadSession = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.generation++
		metrics.ShutdownTimersTotal.WithLabelValues("cancelled").Inc()
		log.Println("lifecycle: shutdown cancelled - new connection")
	}
	active := c.active
	c.mu.Unlock()

	metrics.SessionsActive.Set(float64(active))
	log.Printf("lifecycle: client connected (%d active)", active)

	var once sync.Once
	return func() {
		once.Do(c.release)
	}
}

func (c *Controller) release() {
	c.mu.Lock()
	if c.active > 0 {
		c.active--
	}
	active := c.active
	armed := false
	if active == 0 && c.autoShutdown && c.hadSession && !c.stopped && c.timer == nil {
		gen := c.generation
		c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
		armed = true
	}
	c.mu.Unlock()

	metrics.SessionsActive.Set(float64(active))
	log.Printf("lifecycle: client disconnected (%d active)", active)
	if armed {
		metrics.ShutdownTimersTotal.WithLabelValues("armed").Inc()
		log.Printf("lifecycle: no active connections, shutting down in %s", c.delay)
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.active != 0 || c.stopped {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.stopped = true
	c.mu.Unlock()

	metrics.ShutdownTimersTotal.WithLabelValues("fired").Inc()
	log.Println("lifecycle: shutting down...")
	if c.onIdle != nil {
		c.onIdle()
	}
}

// Active returns the number of live sessions.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ShutdownPending reports whether the idle timer is armed.
func (c *Controller) ShutdownPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Stop disarms the timer for good. Used when the process exits for another
// reason.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.generation++
	}
}
