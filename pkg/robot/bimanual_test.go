package robot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRobot records actions and serves a fixed observation.
type fakeRobot struct {
	name      string
	connected bool
	obs       Frame
	actions   []Frame
	stops     int
}

func (f *fakeRobot) Name() string                    { return f.name }
func (f *fakeRobot) Connect(context.Context) error   { f.connected = true; return nil }
func (f *fakeRobot) Disconnect() error               { f.connected = false; return nil }
func (f *fakeRobot) Connected() bool                 { return f.connected }
func (f *fakeRobot) ObservationFeatures() []string   { return PiperJointNames() }
func (f *fakeRobot) ActionFeatures() []string        { return PiperJointNames() }
func (f *fakeRobot) Stop(context.Context) error      { f.stops++; return nil }

func (f *fakeRobot) Observation(context.Context) (Frame, error) {
	return f.obs.Clone(), nil
}

func (f *fakeRobot) SendAction(_ context.Context, action Frame) (Frame, error) {
	f.actions = append(f.actions, action.Clone())
	return action, nil
}

func TestBimanual_SendActionSplitsByPrefix(t *testing.T) {
	left := &fakeRobot{name: "left_arm"}
	right := &fakeRobot{name: "right_arm"}
	bi := NewBimanual("", left, right)

	require.NoError(t, bi.Connect(context.Background()))

	_, err := bi.SendAction(context.Background(), Frame{
		"left_shoulder_pan":  10,
		"left_gripper":       20,
		"right_shoulder_pan": -10,
	})
	require.NoError(t, err)

	require.Len(t, left.actions, 1)
	assert.Equal(t, Frame{"shoulder_pan": 10, "gripper": 20}, left.actions[0])
	require.Len(t, right.actions, 1)
	assert.Equal(t, Frame{"shoulder_pan": -10}, right.actions[0])
}

func TestBimanual_ObservationMergesWithPrefix(t *testing.T) {
	left := &fakeRobot{name: "left_arm", obs: Frame{"joint_0.pos": 1}}
	right := &fakeRobot{name: "right_arm", obs: Frame{"joint_0.pos": 2}}
	bi := NewBimanual("bimanual", left, right)

	require.NoError(t, bi.Connect(context.Background()))

	obs, err := bi.Observation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Frame{
		"left_joint_0.pos":  1,
		"right_joint_0.pos": 2,
	}, obs)
}

func TestBimanual_Features(t *testing.T) {
	left := &fakeRobot{name: "left_arm"}
	right := &fakeRobot{name: "right_arm"}
	bi := NewBimanual("bimanual", left, right)

	features := bi.ActionFeatures()
	assert.Len(t, features, 2*PiperJointCount)
	assert.Contains(t, features, "left_joint_0.pos")
	assert.Contains(t, features, "right_joint_6.pos")
}

func TestBimanual_ConnectStates(t *testing.T) {
	left := &fakeRobot{name: "left_arm"}
	right := &fakeRobot{name: "right_arm"}
	bi := NewBimanual("bimanual", left, right)

	assert.False(t, bi.Connected())
	require.NoError(t, bi.Connect(context.Background()))
	assert.True(t, bi.Connected())
	assert.ErrorIs(t, bi.Connect(context.Background()), ErrDeviceAlreadyConnected)

	require.NoError(t, bi.Stop(context.Background()))
	assert.Equal(t, 1, left.stops)
	assert.Equal(t, 1, right.stops)

	require.NoError(t, bi.Disconnect())
	assert.ErrorIs(t, bi.Disconnect(), ErrDeviceNotConnected)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "quadruped"})
	assert.Error(t, err)
}
