package robot

import (
	"context"
	"fmt"

	"github.com/gwillem/piperlink/pkg/piper"
)

// Piper is an AgileX Piper arm exposed as a Robot. Frames are normalized
// [-100, 100]; the driver works in degrees against the joint limits.
type Piper struct {
	id   string
	port string
	cfg  Config
	arm  *piper.Arm
}

func newPiper(cfg Config) (Robot, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("piper requires a CAN channel port")
	}
	id := cfg.ID
	if id == "" {
		id = "FOLLOWER"
	}
	return &Piper{id: id, port: cfg.Port, cfg: cfg}, nil
}

func (r *Piper) Name() string { return r.id }

func (r *Piper) Connect(ctx context.Context) error {
	if r.arm != nil {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceAlreadyConnected)
	}
	if len(r.cfg.Cameras) > 0 {
		return fmt.Errorf("%s: cameras are not supported", r.id)
	}
	arm, err := piper.Open(ctx, r.port)
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

func (r *Piper) Disconnect() error {
	if r.arm == nil {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	r.arm.Disable(context.Background())
	err := r.arm.Close()
	r.arm = nil
	return err
}

func (r *Piper) Connected() bool { return r.arm != nil }

func (r *Piper) ObservationFeatures() []string { return PiperJointNames() }

func (r *Piper) ActionFeatures() []string { return PiperJointNames() }

func (r *Piper) Observation(ctx context.Context) (Frame, error) {
	if r.arm == nil {
		return nil, fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	joints := r.arm.Joints()
	lims := piper.Limits()
	obs := make(Frame, PiperJointCount)
	for i, name := range PiperJointNames() {
		obs[name] = lims[i].Normalize(joints[i])
	}
	return obs, nil
}

func (r *Piper) SendAction(ctx context.Context, action Frame) (Frame, error) {
	if r.arm == nil {
		return nil, fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	norm := piperTargets(action)
	lims := piper.Limits()
	var targets [piper.JointCount]float64
	for i := range targets {
		targets[i] = lims[i].Denormalize(norm[i])
	}
	if err := r.arm.SetJointPositions(ctx, targets); err != nil {
		return nil, err
	}
	return action, nil
}

// Stop re-sends the current position so the arm holds in place.
func (r *Piper) Stop(ctx context.Context) error {
	obs, err := r.Observation(ctx)
	if err != nil {
		return err
	}
	_, err = r.SendAction(ctx, obs)
	return err
}

// piperTargets resolves an action frame to normalized joint targets. It
// accepts both key styles: SO-101 leader names (shoulder_pan, ...) as sent
// during teleoperation, and joint_N.pos keys as sent by Stop or by recorded
// piper actions. Leader names win when both are present.
func piperTargets(action Frame) [PiperJointCount]float64 {
	var targets [PiperJointCount]float64
	for i := range targets {
		if src := leaderJointSources[i]; src != "" {
			if v, ok := action[string(src)]; ok {
				targets[i] = v
				continue
			}
		}
		if v, ok := action[fmt.Sprintf("joint_%d.pos", i)]; ok {
			targets[i] = v
		}
	}
	return targets
}
