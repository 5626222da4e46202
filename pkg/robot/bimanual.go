package robot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Prefixes used to address the arms of a bimanual device.
const (
	LeftPrefix  = "left_"
	RightPrefix = "right_"
)

// Bimanual composes two robots into one. Feature keys of the left and right
// arm are carried with left_/right_ prefixes; actions are split by prefix
// and fanned out.
type Bimanual struct {
	id    string
	left  Robot
	right Robot
}

// NewBimanual builds a composite robot from two arms.
func NewBimanual(id string, left, right Robot) *Bimanual {
	if id == "" {
		id = "bimanual"
	}
	return &Bimanual{id: id, left: left, right: right}
}

func newBimanualPiperFollower(cfg Config) (Robot, error) {
	leftPort := cfg.LeftPort
	if leftPort == "" {
		leftPort = "left_piper"
	}
	rightPort := cfg.RightPort
	if rightPort == "" {
		rightPort = "right_piper"
	}

	left, err := newPiper(Config{Type: "piper", Port: leftPort, ID: "left_arm"})
	if err != nil {
		return nil, fmt.Errorf("left arm: %w", err)
	}
	right, err := newPiper(Config{Type: "piper", Port: rightPort, ID: "right_arm"})
	if err != nil {
		return nil, fmt.Errorf("right arm: %w", err)
	}
	return NewBimanual(cfg.ID, left, right), nil
}

func (r *Bimanual) Name() string { return r.id }

func (r *Bimanual) Connect(ctx context.Context) error {
	if r.Connected() {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceAlreadyConnected)
	}
	if err := r.left.Connect(ctx); err != nil {
		return err
	}
	if err := r.right.Connect(ctx); err != nil {
		r.left.Disconnect()
		return err
	}
	return nil
}

func (r *Bimanual) Disconnect() error {
	if !r.Connected() {
		return fmt.Errorf("%s: %w", r.id, ErrDeviceNotConnected)
	}
	return errors.Join(r.left.Disconnect(), r.right.Disconnect())
}

func (r *Bimanual) Connected() bool {
	return r.left.Connected() && r.right.Connected()
}

func (r *Bimanual) ObservationFeatures() []string {
	return prefixed(r.left.ObservationFeatures(), r.right.ObservationFeatures())
}

func (r *Bimanual) ActionFeatures() []string {
	return prefixed(r.left.ActionFeatures(), r.right.ActionFeatures())
}

func (r *Bimanual) Observation(ctx context.Context) (Frame, error) {
	leftObs, err := r.left.Observation(ctx)
	if err != nil {
		return nil, fmt.Errorf("left arm: %w", err)
	}
	rightObs, err := r.right.Observation(ctx)
	if err != nil {
		return nil, fmt.Errorf("right arm: %w", err)
	}
	obs := make(Frame, len(leftObs)+len(rightObs))
	for k, v := range leftObs {
		obs[LeftPrefix+k] = v
	}
	for k, v := range rightObs {
		obs[RightPrefix+k] = v
	}
	return obs, nil
}

func (r *Bimanual) SendAction(ctx context.Context, action Frame) (Frame, error) {
	leftAction := make(Frame)
	rightAction := make(Frame)
	for k, v := range action {
		switch {
		case strings.HasPrefix(k, LeftPrefix):
			leftAction[strings.TrimPrefix(k, LeftPrefix)] = v
		case strings.HasPrefix(k, RightPrefix):
			rightAction[strings.TrimPrefix(k, RightPrefix)] = v
		}
	}
	if len(leftAction) > 0 {
		if _, err := r.left.SendAction(ctx, leftAction); err != nil {
			return nil, fmt.Errorf("left arm: %w", err)
		}
	}
	if len(rightAction) > 0 {
		if _, err := r.right.SendAction(ctx, rightAction); err != nil {
			return nil, fmt.Errorf("right arm: %w", err)
		}
	}
	return action, nil
}

// Stop holds both arms at their current positions.
func (r *Bimanual) Stop(ctx context.Context) error {
	return errors.Join(r.left.Stop(ctx), r.right.Stop(ctx))
}

func prefixed(left, right []string) []string {
	out := make([]string, 0, len(left)+len(right))
	for _, k := range left {
		out = append(out, LeftPrefix+k)
	}
	for _, k := range right {
		out = append(out, RightPrefix+k)
	}
	return out
}
