// Package robot provides abstractions for controlling robot arms.
package robot

import "fmt"

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all SO-101 motor names in order (matching servo IDs 1-6).
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// PiperJointCount is the number of controllable piper joints, including the
// gripper as joint 6.
const PiperJointCount = 7

// PiperJointNames returns the piper joint feature names, joint_0.pos through
// joint_6.pos.
func PiperJointNames() []string {
	names := make([]string, PiperJointCount)
	for i := range names {
		names[i] = fmt.Sprintf("joint_%d.pos", i)
	}
	return names
}

// leaderJointSources maps each piper joint index to the SO-101 leader motor
// that drives it. Piper joint 3 has no leader counterpart and stays at zero.
var leaderJointSources = [PiperJointCount]MotorName{
	ShoulderPan,
	ShoulderLift,
	ElbowFlex,
	"",
	WristFlex,
	WristRoll,
	Gripper,
}
