// Package piperlink provides teleoperation for AgileX Piper and SO-101
// robot arms, locally over serial/CAN or remotely through a host process
// running on the robot's onboard computer.
//
// # Installation
//
//	go install github.com/gwillem/piperlink/cmd/piperlink@latest
//
// # Usage
//
// On the robot's onboard computer, expose the follower arm:
//
//	piperlink host --robot.type=piper --robot.port=can0 --robot.id=FOLLOWER
//
// On the operator's machine, calibrate the leader arm(s) once:
//
//	piperlink setup
//
// then start teleoperation against the host:
//
//	piperlink teleoperate --remote_ip=192.168.1.20 --teleop.port=/dev/ttyACM0
//
// Bimanual configurations address two arms at once:
//
//	piperlink host --robot.type=bimanual_piper_follower --left_arm_port=left_piper --right_arm_port=right_piper
//	piperlink teleoperate --bimanual --remote_ip=192.168.1.20 --teleop_calibration_dir=calibration
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/piperlink: CLI with setup, teleoperate and host commands
//   - pkg/robot: robot abstractions, SO-101 arm control, calibration
//   - pkg/piper: AgileX Piper CAN driver
//   - pkg/teleop: leader devices and the teleoperation controller
//   - pkg/remote: host/client link for remote teleoperation
package piperlink
