package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPiperTargets_LeaderKeys(t *testing.T) {
	action := Frame{
		"shoulder_pan":  10,
		"shoulder_lift": 20,
		"elbow_flex":    30,
		"wrist_flex":    40,
		"wrist_roll":    50,
		"gripper":       60,
	}

	targets := piperTargets(action)

	assert.Equal(t, 10.0, targets[0])
	assert.Equal(t, 20.0, targets[1])
	assert.Equal(t, 30.0, targets[2])
	assert.Equal(t, 0.0, targets[3], "joint 3 has no leader source")
	assert.Equal(t, 40.0, targets[4])
	assert.Equal(t, 50.0, targets[5])
	assert.Equal(t, 60.0, targets[6])
}

func TestPiperTargets_JointKeys(t *testing.T) {
	action := Frame{}
	for i, name := range PiperJointNames() {
		action[name] = float64(i + 1)
	}

	targets := piperTargets(action)

	for i := range targets {
		assert.Equal(t, float64(i+1), targets[i], "joint %d", i)
	}
}

func TestPiperTargets_LeaderKeysWin(t *testing.T) {
	// During teleoperation both styles can appear; the leader value wins.
	action := Frame{
		"shoulder_pan": 42,
		"joint_0.pos":  -42,
		"joint_3.pos":  7,
	}

	targets := piperTargets(action)

	assert.Equal(t, 42.0, targets[0])
	assert.Equal(t, 7.0, targets[3])
}

func TestPiperJointNames(t *testing.T) {
	names := PiperJointNames()
	assert.Len(t, names, PiperJointCount)
	assert.Equal(t, "joint_0.pos", names[0])
	assert.Equal(t, "joint_6.pos", names[6])
}
