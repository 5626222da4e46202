package piper

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can/pkg/socketcan"
)

// Arm is a connection to one Piper arm on a SocketCAN channel, e.g.
// "can0", "left_piper". Feedback frames are consumed in the background so
// Joints always returns the latest known state without touching the bus.
type Arm struct {
	channel string
	conn    net.Conn
	tx      *socketcan.Transmitter
	rx      *socketcan.Receiver

	mu     sync.RWMutex
	joints [JointCount]float64 // degrees, gripper in mm
}

// Open dials the CAN channel and starts consuming feedback.
func Open(ctx context.Context, channel string) (*Arm, error) {
	conn, err := socketcan.DialContext(ctx, "can", channel)
	if err != nil {
		return nil, fmt.Errorf("open CAN channel %s: %w", channel, err)
	}

	a := &Arm{
		channel: channel,
		conn:    conn,
		tx:      socketcan.NewTransmitter(conn),
		rx:      socketcan.NewReceiver(conn),
	}
	go a.readLoop()
	return a, nil
}

// Close shuts down the CAN connection. The feedback loop ends when the
// connection closes.
func (a *Arm) Close() error {
	return a.conn.Close()
}

// Channel returns the CAN channel name.
func (a *Arm) Channel() string {
	return a.channel
}

// Enable puts the arm in CAN command mode and enables all motors.
func (a *Arm) Enable(ctx context.Context) error {
	if err := a.tx.TransmitFrame(ctx, motionCtrlFrame(defaultSpeed)); err != nil {
		return fmt.Errorf("set motion mode: %w", err)
	}
	if err := a.tx.TransmitFrame(ctx, enableFrame(true)); err != nil {
		return fmt.Errorf("enable motors: %w", err)
	}
	return nil
}

// Disable disables all motors.
func (a *Arm) Disable(ctx context.Context) error {
	if err := a.tx.TransmitFrame(ctx, enableFrame(false)); err != nil {
		return fmt.Errorf("disable motors: %w", err)
	}
	return nil
}

// SetJointPositions commands all axes at once. Targets are in degrees,
// gripper travel in mm; values outside the joint limits are clamped.
func (a *Arm) SetJointPositions(ctx context.Context, targets [JointCount]float64) error {
	for i, l := range limits {
		if targets[i] < l.Min {
			targets[i] = l.Min
		} else if targets[i] > l.Max {
			targets[i] = l.Max
		}
	}

	frames := []struct {
		id   uint32
		a, b float64
	}{
		{idJointCmd12, targets[0], targets[1]},
		{idJointCmd34, targets[2], targets[3]},
		{idJointCmd56, targets[4], targets[5]},
	}
	for _, p := range frames {
		if err := a.tx.TransmitFrame(ctx, jointPairFrame(p.id, p.a, p.b)); err != nil {
			return fmt.Errorf("send joint command: %w", err)
		}
	}
	if err := a.tx.TransmitFrame(ctx, gripperFrame(targets[6])); err != nil {
		return fmt.Errorf("send gripper command: %w", err)
	}
	return nil
}

// Joints returns the latest joint state reported by the arm.
func (a *Arm) Joints() [JointCount]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.joints
}

func (a *Arm) readLoop() {
	for a.rx.Receive() {
		f := a.rx.Frame()
		var base int
		switch f.ID {
		case idJointFb12:
			base = 0
		case idJointFb34:
			base = 2
		case idJointFb56:
			base = 4
		case idGripperFb:
			a.mu.Lock()
			a.joints[6] = milli(f.Data[0:4])
			a.mu.Unlock()
			continue
		default:
			continue
		}
		v0, v1 := decodePair(f)
		a.mu.Lock()
		a.joints[base] = v0
		a.joints[base+1] = v1
		a.mu.Unlock()
	}
}
