// Package teleop provides teleoperation control for robot arms.
package teleop

import (
	"context"
	"fmt"
	"sort"

	"github.com/gwillem/piperlink/pkg/robot"
)

// Teleoperator is a leader device: something an operator moves by hand that
// emits action frames for a follower robot.
type Teleoperator interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool

	// ActionFeatures lists the frame keys this device emits, in a stable
	// order.
	ActionFeatures() []string

	// Action reads the current leader positions as an action frame.
	Action(ctx context.Context) (robot.Frame, error)
}

// Config is the flat teleoperator descriptor assembled from command-line
// flags.
type Config struct {
	// Type selects the implementation: so101_leader, bimanual_so101_leader.
	Type string
	Port string
	ID   string

	// Calibration, when set, takes precedence over CalibrationDir lookups.
	Calibration    robot.Calibration
	CalibrationDir string

	// Bimanual leader ports and calibration file base names.
	LeftPort       string
	RightPort      string
	LeftCalibName  string
	RightCalibName string
}

// Factory builds a teleoperator from its configuration.
type Factory func(Config) (Teleoperator, error)

var factories = map[string]Factory{
	"so101_leader":          newSO101Leader,
	"bimanual_so101_leader": newBimanualLeader,
}

// New builds a teleoperator from a config, dispatching on cfg.Type.
func New(cfg Config) (Teleoperator, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown teleoperator type %q (have %v)", cfg.Type, types())
	}
	return f(cfg)
}

func types() []string {
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SO101Leader is an SO-101 arm used as an input device. Torque stays
// disabled so the operator can move it freely.
type SO101Leader struct {
	id   string
	port string
	cal  robot.Calibration
	dir  string
	arm  *robot.Arm
}

func newSO101Leader(cfg Config) (Teleoperator, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("so101_leader requires a port")
	}
	id := cfg.ID
	if id == "" {
		id = "leader"
	}
	return &SO101Leader{
		id:   id,
		port: cfg.Port,
		cal:  cfg.Calibration,
		dir:  cfg.CalibrationDir,
	}, nil
}

func (t *SO101Leader) Name() string { return t.id }

func (t *SO101Leader) Connect(ctx context.Context) error {
	if t.arm != nil {
		return fmt.Errorf("%s: %w", t.id, robot.ErrDeviceAlreadyConnected)
	}

	cal := t.cal
	if len(cal) == 0 {
		var err error
		cal, err = robot.LoadCalibrationFromDir(t.dir, t.id)
		if err != nil {
			return fmt.Errorf("load calibration for %s: %w", t.id, err)
		}
	}

	arm, err := robot.NewArm(robot.ArmConfig{Port: t.port, Calibration: cal})
	if err != nil {
		return fmt.Errorf("connect %s: %w", t.id, err)
	}
	// Leader arms are passive: release torque so the operator can move them.
	if err := arm.Disable(ctx); err != nil {
		arm.Close()
		return fmt.Errorf("disable %s: %w", t.id, err)
	}
	t.arm = arm
	return nil
}

func (t *SO101Leader) Disconnect() error {
	if t.arm == nil {
		return fmt.Errorf("%s: %w", t.id, robot.ErrDeviceNotConnected)
	}
	err := t.arm.Close()
	t.arm = nil
	return err
}

func (t *SO101Leader) Connected() bool { return t.arm != nil }

func (t *SO101Leader) ActionFeatures() []string {
	motors := robot.AllMotors()
	names := make([]string, len(motors))
	for i, m := range motors {
		names[i] = string(m)
	}
	return names
}

func (t *SO101Leader) Action(ctx context.Context) (robot.Frame, error) {
	if t.arm == nil {
		return nil, fmt.Errorf("%s: %w", t.id, robot.ErrDeviceNotConnected)
	}
	positions, err := t.arm.ReadPositions(ctx)
	if err != nil {
		return nil, err
	}
	action := make(robot.Frame, len(positions))
	for name, pos := range positions {
		action[string(name)] = pos
	}
	return action, nil
}
