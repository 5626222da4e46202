package robot

import (
	"context"
	"fmt"
	"sort"
)

// Frame holds named scalar features: joint positions read from a robot or
// target positions sent to one. Keys are feature names such as
// "shoulder_pan" or "joint_2.pos", values are normalized to [-100, 100].
type Frame map[string]float64

// Clone returns a copy of the frame.
func (f Frame) Clone() Frame {
	out := make(Frame, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Robot is a controllable manipulator: a local arm, a composite of two arms,
// or a proxy to a remote host.
type Robot interface {
	// Name returns the configured robot id.
	Name() string

	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool

	// ObservationFeatures and ActionFeatures list the frame keys this robot
	// produces and accepts, in a stable order.
	ObservationFeatures() []string
	ActionFeatures() []string

	// Observation reads the current state of the robot.
	Observation(ctx context.Context) (Frame, error)

	// SendAction applies an action and returns the action actually sent.
	SendAction(ctx context.Context, action Frame) (Frame, error)

	// Stop holds the robot at its current position.
	Stop(ctx context.Context) error
}

// Factory builds a robot from its configuration.
type Factory func(Config) (Robot, error)

var factories = map[string]Factory{}

// Register makes a robot type available to New. Remote robot types register
// themselves from their own package.
func Register(typ string, f Factory) {
	factories[typ] = f
}

// New builds a robot from a config, dispatching on cfg.Type.
func New(cfg Config) (Robot, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown robot type %q (have %v)", cfg.Type, Types())
	}
	return f(cfg)
}

// Types returns the registered robot type names, sorted.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func init() {
	Register("so101_follower", newSO101Follower)
	Register("piper", newPiper)
	Register("bimanual_piper_follower", newBimanualPiperFollower)
}
