package teleop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/piperlink/pkg/robot"
)

// State represents the current state of teleoperation.
type State struct {
	Positions robot.Frame
	Timestamp time.Time
	Error     error
}

// Controller runs the teleoperation control loop: read the leader, send to
// the follower, at a fixed frequency.
type Controller struct {
	leader   Teleoperator
	follower robot.Robot
	fps      int
	mirror   bool
	duration time.Duration

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// ControllerConfig holds configuration for the controller.
type ControllerConfig struct {
	FPS      int
	Mirror   bool          // Invert shoulder_pan and wrist_roll positions
	Duration time.Duration // Stop after this long; 0 runs until cancelled
}

// NewController creates a controller for an already constructed leader and
// follower. Both must be connected before Start.
func NewController(leader Teleoperator, follower robot.Robot, cfg ControllerConfig) *Controller {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	return &Controller{
		leader:   leader,
		follower: follower,
		fps:      cfg.FPS,
		mirror:   cfg.Mirror,
		duration: cfg.Duration,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 10),
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

// FPS returns the control frequency.
func (c *Controller) FPS() int {
	return c.fps
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start begins the teleoperation control loop and blocks until the context
// is cancelled or the configured duration elapses.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log("Teleoperation started at %d Hz (%s -> %s)", c.fps, c.leader.Name(), c.follower.Name())

	if c.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.duration)
		defer cancel()
	}

	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	action, err := c.leader.Action(ctx)
	if err != nil {
		c.log("Read error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}
	if len(action) == 0 {
		c.log("Waiting for teleoperator data...")
		return
	}

	if c.mirror {
		action = applyMirror(action)
	}

	if _, err := c.follower.SendAction(ctx, action); err != nil {
		c.log("Write error: %v", err)
	}

	c.sendState(State{
		Positions: action,
		Timestamp: time.Now(),
	})
}

// applyMirror inverts shoulder_pan and wrist_roll, including the prefixed
// variants emitted by bimanual leaders.
func applyMirror(action robot.Frame) robot.Frame {
	out := make(robot.Frame, len(action))
	for name, pos := range action {
		if strings.HasSuffix(name, string(robot.ShoulderPan)) || strings.HasSuffix(name, string(robot.WristRoll)) {
			out[name] = -pos
		} else {
			out[name] = pos
		}
	}
	return out
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

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	if err := c.follower.Stop(context.Background()); err != nil {
		c.log("Warning: failed to stop follower: %v", err)
	}
	c.log("Teleoperation stopped")
}
