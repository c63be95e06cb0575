// Package control provides the fixed-rate control loop and gripper
// trajectories for an OpenArm robot.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openarm/openarm-go/pkg/damiao"
	"github.com/openarm/openarm-go/pkg/openarm"
)

// State represents one sample of the robot's state.
type State struct {
	Joints     []float64 // joint positions, rad
	Aperture   float64   // gripper aperture [0,1], valid when HasGripper
	HasGripper bool
	Frames     int // frames dispatched while sampling
	Timestamp  time.Time
	Error      error
}

// Config holds configuration for the controller.
type Config struct {
	Hz    int           // sampling frequency, default 60
	Quiet time.Duration // receive quiet window per step, default 2ms
}

// Controller runs the periodic refresh/receive loop and publishes state
// samples and log lines over channels.
type Controller struct {
	arm   *openarm.Arm
	hz    int
	quiet time.Duration

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// NewController creates a controller for an initialized arm.
func NewController(arm *openarm.Arm, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.Quiet <= 0 {
		cfg.Quiet = 2 * time.Millisecond
	}
	return &Controller{
		arm:     arm,
		hz:      cfg.Hz,
		quiet:   cfg.Quiet,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the sampling frequency.
func (c *Controller) Hz() int {
	return c.hz
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start begins the sampling loop. It switches all devices to state
// parsing and runs until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.arm.SetCallbackModeAll(damiao.CallbackState)
	c.log("Monitoring started at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log("Monitoring stopped")
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	if err := c.arm.RefreshAll(ctx); err != nil {
		c.log("Refresh error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}
	n, err := c.arm.RecvAll(ctx, c.quiet)
	if err != nil && ctx.Err() == nil {
		c.log("Receive error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	s := State{
		Joints:    c.arm.Arm().Positions(),
		Frames:    n,
		Timestamp: time.Now(),
	}
	if g := c.arm.Gripper(); g != nil {
		s.HasGripper = true
		s.Aperture = g.Aperture()
	}
	if err := c.arm.Arm().Err(); err != nil {
		c.log("Joint fault: %v", err)
		s.Error = err
	}
	c.sendState(s)
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}
