package teleop

import (
	"context"
	"errors"
	"fmt"

	"github.com/gwillem/piperlink/pkg/robot"
)

// Default calibration file base names for the two leader arms.
const (
	DefaultLeftCalibName  = "left_arm"
	DefaultRightCalibName = "right_arm"
)

// BimanualLeader combines two SO-101 leader arms into one teleoperator.
// Emitted action keys carry left_/right_ prefixes.
type BimanualLeader struct {
	id    string
	left  Teleoperator
	right Teleoperator
}

func newBimanualLeader(cfg Config) (Teleoperator, error) {
	if cfg.LeftPort == "" || cfg.RightPort == "" {
		return nil, fmt.Errorf("bimanual_so101_leader requires left and right ports")
	}
	leftName := cfg.LeftCalibName
	if leftName == "" {
		leftName = DefaultLeftCalibName
	}
	rightName := cfg.RightCalibName
	if rightName == "" {
		rightName = DefaultRightCalibName
	}

	left, err := newSO101Leader(Config{
		Type:           "so101_leader",
		Port:           cfg.LeftPort,
		ID:             leftName,
		CalibrationDir: cfg.CalibrationDir,
	})
	if err != nil {
		return nil, fmt.Errorf("left arm: %w", err)
	}
	right, err := newSO101Leader(Config{
		Type:           "so101_leader",
		Port:           cfg.RightPort,
		ID:             rightName,
		CalibrationDir: cfg.CalibrationDir,
	})
	if err != nil {
		return nil, fmt.Errorf("right arm: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "bimanual"
	}
	return &BimanualLeader{id: id, left: left, right: right}, nil
}

func (t *BimanualLeader) Name() string { return t.id }

func (t *BimanualLeader) Connect(ctx context.Context) error {
	if t.Connected() {
		return fmt.Errorf("%s: %w", t.id, robot.ErrDeviceAlreadyConnected)
	}
	if err := t.left.Connect(ctx); err != nil {
		return err
	}
	if err := t.right.Connect(ctx); err != nil {
		t.left.Disconnect()
		return err
	}
	return nil
}

func (t *BimanualLeader) Disconnect() error {
	if !t.Connected() {
		return fmt.Errorf("%s: %w", t.id, robot.ErrDeviceNotConnected)
	}
	return errors.Join(t.left.Disconnect(), t.right.Disconnect())
}

func (t *BimanualLeader) Connected() bool {
	return t.left.Connected() && t.right.Connected()
}

func (t *BimanualLeader) ActionFeatures() []string {
	leftFeatures := t.left.ActionFeatures()
	rightFeatures := t.right.ActionFeatures()
	out := make([]string, 0, len(leftFeatures)+len(rightFeatures))
	for _, k := range leftFeatures {
		out = append(out, robot.LeftPrefix+k)
	}
	for _, k := range rightFeatures {
		out = append(out, robot.RightPrefix+k)
	}
	return out
}

func (t *BimanualLeader) Action(ctx context.Context) (robot.Frame, error) {
	leftAction, err := t.left.Action(ctx)
	if err != nil {
		return nil, fmt.Errorf("left arm: %w", err)
	}
	rightAction, err := t.right.Action(ctx)
	if err != nil {
		return nil, fmt.Errorf("right arm: %w", err)
	}
	action := make(robot.Frame, len(leftAction)+len(rightAction))
	for k, v := range leftAction {
		action[robot.LeftPrefix+k] = v
	}
	for k, v := range rightAction {
		action[robot.RightPrefix+k] = v
	}
	return action, nil
}
