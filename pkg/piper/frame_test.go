package piper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJointPairFrame_RoundTrip(t *testing.T) {
	f := jointPairFrame(idJointCmd12, 12.345, -90.001)

	assert.Equal(t, uint32(idJointCmd12), f.ID)
	assert.Equal(t, uint8(8), f.Length)

	a, b := decodePair(f)
	assert.InDelta(t, 12.345, a, 0.0005)
	assert.InDelta(t, -90.001, b, 0.0005)
}

func TestGripperFrame(t *testing.T) {
	f := gripperFrame(35.5)

	assert.Equal(t, uint32(idGripperCmd), f.ID)
	assert.InDelta(t, 35.5, milli(f.Data[0:4]), 0.0005)
	assert.Equal(t, uint8(gripperEnable), f.Data[6])
}

func TestEnableFrame(t *testing.T) {
	on := enableFrame(true)
	assert.Equal(t, uint32(idEnable), on.ID)
	assert.Equal(t, uint8(enableAllMotors), on.Data[0])
	assert.Equal(t, uint8(motorEnable), on.Data[1])

	off := enableFrame(false)
	assert.Equal(t, uint8(motorDisable), off.Data[1])
}

func TestMotionCtrlFrame(t *testing.T) {
	f := motionCtrlFrame(defaultSpeed)
	assert.Equal(t, uint32(idMotionCtrl), f.ID)
	assert.Equal(t, uint8(ctrlModeCAN), f.Data[0])
	assert.Equal(t, uint8(moveModeJoint), f.Data[1])
	assert.Equal(t, uint8(defaultSpeed), f.Data[2])
}

func TestJointLimit_NormalizeDenormalize(t *testing.T) {
	l := JointLimit{Min: -154, Max: 154}

	assert.InDelta(t, -154, l.Denormalize(-100), 0.001)
	assert.InDelta(t, 154, l.Denormalize(100), 0.001)
	assert.InDelta(t, 0, l.Denormalize(0), 0.001)

	// Out-of-range input clamps to the limits.
	assert.InDelta(t, 154, l.Denormalize(250), 0.001)
	assert.InDelta(t, -154, l.Denormalize(-250), 0.001)

	// Asymmetric range, e.g. the elbow.
	elbow := JointLimit{Min: -175, Max: 0}
	assert.InDelta(t, -87.5, elbow.Denormalize(0), 0.001)
	assert.InDelta(t, 0, elbow.Normalize(-87.5), 0.001)

	// Round trip across all axes.
	for i, lim := range Limits() {
		for _, norm := range []float64{-100, -33.3, 0, 50, 100} {
			back := lim.Normalize(lim.Denormalize(norm))
			assert.InDelta(t, norm, back, 0.001, "axis %d norm %f", i, norm)
		}
	}
}
