// Package piper drives an AgileX Piper arm over SocketCAN.
package piper

import (
	"encoding/binary"
	"math"

	"go.einride.tech/can"
)

// JointCount is the number of controllable axes: six joints plus the
// gripper as axis 6.
const JointCount = 7

// CAN IDs used by the arm. Commands are sent by us, feedback arrives from
// the arm at its own cadence.
const (
	idMotionCtrl = 0x151 // control mode, move mode, speed percentage
	idJointCmd12 = 0x155 // joints 0-1 target
	idJointCmd34 = 0x156 // joints 2-3 target
	idJointCmd56 = 0x157 // joints 4-5 target
	idGripperCmd = 0x159 // gripper travel + effort + enable
	idEnable     = 0x471 // motor enable/disable

	idJointFb12  = 0x2A5 // joints 0-1 feedback
	idJointFb34  = 0x2A6 // joints 2-3 feedback
	idJointFb56  = 0x2A7 // joints 4-5 feedback
	idGripperFb  = 0x2A8 // gripper feedback
)

// Motion control constants for idMotionCtrl.
const (
	ctrlModeCAN   = 0x01 // CAN command control
	moveModeJoint = 0x01 // joint-space moves
	defaultSpeed  = 50   // percent of rated joint speed

	enableAllMotors = 0x07
	motorEnable     = 0x02
	motorDisable    = 0x01

	gripperEnable = 0x01
)

// Joint angles travel as big-endian signed 32-bit integers in 0.001 degree
// units; gripper travel in 0.001 mm.
func putMilli(b []byte, v float64) {
	binary.BigEndian.PutUint32(b, uint32(int32(math.Round(v*1000))))
}

func milli(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 1000
}

func motionCtrlFrame(speed uint8) can.Frame {
	var f can.Frame
	f.ID = idMotionCtrl
	f.Length = 8
	f.Data[0] = ctrlModeCAN
	f.Data[1] = moveModeJoint
	f.Data[2] = speed
	return f
}

func enableFrame(on bool) can.Frame {
	var f can.Frame
	f.ID = idEnable
	f.Length = 8
	f.Data[0] = enableAllMotors
	if on {
		f.Data[1] = motorEnable
	} else {
		f.Data[1] = motorDisable
	}
	return f
}

// jointPairFrame packs two joint targets (degrees) into one command frame.
func jointPairFrame(id uint32, a, b float64) can.Frame {
	var f can.Frame
	f.ID = id
	f.Length = 8
	putMilli(f.Data[0:4], a)
	putMilli(f.Data[4:8], b)
	return f
}

// gripperFrame packs a gripper travel target in mm.
func gripperFrame(travel float64) can.Frame {
	var f can.Frame
	f.ID = idGripperCmd
	f.Length = 8
	putMilli(f.Data[0:4], travel)
	f.Data[6] = gripperEnable
	return f
}

// decodePair extracts the two values of a joint command or feedback frame.
func decodePair(f can.Frame) (a, b float64) {
	return milli(f.Data[0:4]), milli(f.Data[4:8])
}
