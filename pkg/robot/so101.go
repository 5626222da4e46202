package robot

import (
	"context"
	"fmt"
)

// SO101Follower is a local SO-101 arm driven directly over its serial bus.
// Torque is enabled while connected so the arm holds commanded positions.
type SO101Follower struct {
	id  string
	cfg Config
	arm *Arm
}

func newSO101Follower(cfg Config) (Robot, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("so101_follower requires a port")
	}
	id := cfg.ID
	if id == "" {
		id = "follower"
	}
	return &SO101Follower{id: id, cfg: cfg}, nil
}

func (r *SO101Follower) Name() string { return r.id }

func (r *SO101Follower) Connect(ctx context.Context) error {
	if r.arm != nil {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceAlreadyConnected)
	}
	if len(r.cfg.Cameras) > 0 {
		return fmt.Errorf("%s: cameras are not supported", r.id)
	}

	cal := r.cfg.Calibration
	if len(cal) == 0 {
		var err error
		cal, err = LoadCalibrationFromDir(r.cfg.CalibrationDir, r.id)
		if err != nil {
			return fmt.Errorf("load calibration for %s: %w", r.id, err)
		}
	}

	arm, err := NewArm(ArmConfig{Port: r.cfg.Port, Calibration: cal})
	if err != nil {
		return fmt.Errorf("connect %s: %w", r.id, err)
	}
	if err := arm.Enable(ctx); err != nil {
		arm.Close()
		return fmt.Errorf("enable %s: %w", r.id, err)
	}
	r.arm = arm
	return nil
}

func (r *SO101Follower) Disconnect() error {
	if r.arm == nil {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	// Best effort: release torque before closing the bus.
	r.arm.Disable(context.Background())
	err := r.arm.Close()
	r.arm = nil
	return err
}

func (r *SO101Follower) Connected() bool { return r.arm != nil }

func (r *SO101Follower) ObservationFeatures() []string {
	return r.ActionFeatures()
}

func (r *SO101Follower) ActionFeatures() []string {
	motors := AllMotors()
	names := make([]string, len(motors))
	for i, m := range motors {
		names[i] = string(m)
	}
	return names
}

func (r *SO101Follower) Observation(ctx context.Context) (Frame, error) {
	if r.arm == nil {
		return nil, fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	positions, err := r.arm.ReadPositions(ctx)
	if err != nil {
		return nil, err
	}
	obs := make(Frame, len(positions))
	for name, pos := range positions {
		obs[string(name)] = pos
	}
	return obs, nil
}

func (r *SO101Follower) SendAction(ctx context.Context, action Frame) (Frame, error) {
	if r.arm == nil {
		return nil, fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	positions := make(map[MotorName]float64, len(action))
	for key, val := range action {
		positions[MotorName(key)] = val
	}
	if err := r.arm.WritePositions(ctx, positions); err != nil {
		return nil, err
	}
	return action, nil
}

// Stop re-sends the current position so the arm holds in place.
func (r *SO101Follower) Stop(ctx context.Context) error {
	obs, err := r.Observation(ctx)
	if err != nil {
		return err
	}
	_, err = r.SendAction(ctx, obs)
	return err
}
