package robot

import "errors"

// Connection state errors shared by robots and teleoperators.
var (
	ErrDeviceAlreadyConnected = errors.New("device already connected")
	ErrDeviceNotConnected     = errors.New("device not connected")
)
