package piper

// JointLimit bounds one axis in degrees (mm for the gripper).
type JointLimit struct {
	Min float64
	Max float64
}

// limits holds the software joint limits of the arm. Axis 6 is gripper
// travel in mm.
var limits = [JointCount]JointLimit{
	{-154, 154}, // joint 0: base rotation
	{0, 195},    // joint 1: shoulder
	{-175, 0},   // joint 2: elbow
	{-106, 106}, // joint 3: wrist roll
	{-75, 75},   // joint 4: wrist pitch
	{-100, 100}, // joint 5: wrist rotation
	{0, 70},     // joint 6: gripper travel (mm)
}

// Limits returns the software joint limits.
func Limits() [JointCount]JointLimit {
	return limits
}

// Denormalize maps a normalized position [-100, 100] onto the joint's limit
// range.
func (l JointLimit) Denormalize(norm float64) float64 {
	if norm < -100 {
		norm = -100
	} else if norm > 100 {
		norm = 100
	}
	return l.Min + (norm+100)/200*(l.Max-l.Min)
}

// Normalize maps a position within the joint's limit range to [-100, 100].
func (l JointLimit) Normalize(v float64) float64 {
	span := l.Max - l.Min
	if span == 0 {
		return 0
	}
	return (v-l.Min)/span*200 - 100
}
