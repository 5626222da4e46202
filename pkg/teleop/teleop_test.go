package teleop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/piperlink/pkg/robot"
)

// fakeLeader emits a fixed action frame.
type fakeLeader struct {
	action robot.Frame
}

func (f *fakeLeader) Name() string                  { return "fake_leader" }
func (f *fakeLeader) Connect(context.Context) error { return nil }
func (f *fakeLeader) Disconnect() error             { return nil }
func (f *fakeLeader) Connected() bool               { return true }

func (f *fakeLeader) ActionFeatures() []string {
	features := make([]string, 0, len(f.action))
	for k := range f.action {
		features = append(features, k)
	}
	return features
}

func (f *fakeLeader) Action(context.Context) (robot.Frame, error) {
	return f.action.Clone(), nil
}

// fakeFollower records actions behind a mutex, since the controller loop
// runs in its own goroutine.
type fakeFollower struct {
	mu      sync.Mutex
	actions []robot.Frame
	stops   int
}

func (f *fakeFollower) Name() string                  { return "fake_follower" }
func (f *fakeFollower) Connect(context.Context) error { return nil }
func (f *fakeFollower) Disconnect() error             { return nil }
func (f *fakeFollower) Connected() bool               { return true }
func (f *fakeFollower) ObservationFeatures() []string { return nil }
func (f *fakeFollower) ActionFeatures() []string      { return nil }

func (f *fakeFollower) Observation(context.Context) (robot.Frame, error) {
	return robot.Frame{}, nil
}

func (f *fakeFollower) SendAction(_ context.Context, action robot.Frame) (robot.Frame, error) {
	f.mu.Lock()
	f.actions = append(f.actions, action.Clone())
	f.mu.Unlock()
	return action, nil
}

func (f *fakeFollower) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeFollower) actionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

func (f *fakeFollower) lastAction() robot.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.actions) == 0 {
		return nil
	}
	return f.actions[len(f.actions)-1]
}

func TestApplyMirror(t *testing.T) {
	action := robot.Frame{
		"shoulder_pan":       10,
		"shoulder_lift":      20,
		"wrist_roll":         30,
		"gripper":            40,
		"left_shoulder_pan":  50,
		"right_wrist_roll":   60,
		"left_elbow_flex":    70,
	}

	mirrored := applyMirror(action)

	assert.Equal(t, -10.0, mirrored["shoulder_pan"])
	assert.Equal(t, 20.0, mirrored["shoulder_lift"])
	assert.Equal(t, -30.0, mirrored["wrist_roll"])
	assert.Equal(t, 40.0, mirrored["gripper"])
	// Prefixed bimanual keys mirror too.
	assert.Equal(t, -50.0, mirrored["left_shoulder_pan"])
	assert.Equal(t, -60.0, mirrored["right_wrist_roll"])
	assert.Equal(t, 70.0, mirrored["left_elbow_flex"])
}

func TestController_RelaysActions(t *testing.T) {
	leader := &fakeLeader{action: robot.Frame{"shoulder_pan": 12.5}}
	follower := &fakeFollower{}

	ctrl := NewController(leader, follower, ControllerConfig{FPS: 200})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Start(ctx) }()

	require.Eventually(t, func() bool {
		return follower.actionCount() > 2
	}, time.Second, 5*time.Millisecond, "follower never received actions")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, robot.Frame{"shoulder_pan": 12.5}, follower.lastAction())

	// Shutdown holds the follower in place.
	follower.mu.Lock()
	stops := follower.stops
	follower.mu.Unlock()
	assert.Equal(t, 1, stops)
}

func TestController_MirrorInvertsPositions(t *testing.T) {
	leader := &fakeLeader{action: robot.Frame{"shoulder_pan": 25, "gripper": 10}}
	follower := &fakeFollower{}

	ctrl := NewController(leader, follower, ControllerConfig{FPS: 200, Mirror: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Start(ctx) }()

	require.Eventually(t, func() bool {
		return follower.actionCount() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, robot.Frame{"shoulder_pan": -25, "gripper": 10}, follower.lastAction())
}

func TestController_DurationStopsLoop(t *testing.T) {
	leader := &fakeLeader{action: robot.Frame{"shoulder_pan": 1}}
	follower := &fakeFollower{}

	ctrl := NewController(leader, follower, ControllerConfig{FPS: 200, Duration: 50 * time.Millisecond})

	err := ctrl.Start(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, follower.actionCount(), 0)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "gamepad"})
	assert.Error(t, err)
}

func TestNew_BimanualLeaderFeatures(t *testing.T) {
	tele, err := New(Config{
		Type:      "bimanual_so101_leader",
		LeftPort:  "/dev/ttyACM0",
		RightPort: "/dev/ttyACM1",
	})
	require.NoError(t, err)

	features := tele.ActionFeatures()
	assert.Len(t, features, 12)
	assert.Contains(t, features, "left_shoulder_pan")
	assert.Contains(t, features, "right_gripper")
	assert.Equal(t, "bimanual", tele.Name())
}

func TestNew_BimanualLeaderRequiresPorts(t *testing.T) {
	_, err := New(Config{Type: "bimanual_so101_leader"})
	assert.Error(t, err)
}
