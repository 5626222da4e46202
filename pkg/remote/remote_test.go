package remote

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/piperlink/pkg/robot"
)

// fakeRobot serves a fixed observation and records what the host loop
// sends it. Guarded by a mutex since the host loop runs concurrently with
// test assertions.
type fakeRobot struct {
	mu      sync.Mutex
	obs     robot.Frame
	actions []robot.Frame
	stops   int
}

func (f *fakeRobot) Name() string                  { return "fake" }
func (f *fakeRobot) Connect(context.Context) error { return nil }
func (f *fakeRobot) Disconnect() error             { return nil }
func (f *fakeRobot) Connected() bool               { return true }
func (f *fakeRobot) ObservationFeatures() []string { return robot.PiperJointNames() }
func (f *fakeRobot) ActionFeatures() []string      { return robot.PiperJointNames() }

func (f *fakeRobot) Observation(context.Context) (robot.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.obs.Clone(), nil
}

func (f *fakeRobot) SendAction(_ context.Context, action robot.Frame) (robot.Frame, error) {
	f.mu.Lock()
	f.actions = append(f.actions, action.Clone())
	f.mu.Unlock()
	return action, nil
}

func (f *fakeRobot) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeRobot) actionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actions)
}

func (f *fakeRobot) lastAction() robot.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.actions) == 0 {
		return nil
	}
	return f.actions[len(f.actions)-1]
}

func (f *fakeRobot) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// startHost binds ephemeral ports and serves in the background, returning a
// connected client.
func startHost(t *testing.T, rob robot.Robot, cfg HostConfig) *Client {
	t.Helper()

	host := NewHost(rob, cfg)
	require.NoError(t, host.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go host.Serve(ctx)

	cmdPort := host.CmdAddr().(*net.TCPAddr).Port
	obsPort := host.ObservationsAddr().(*net.TCPAddr).Port

	rc, err := robot.New(robot.Config{
		Type:             "piper_client",
		RemoteIP:         "127.0.0.1",
		PortCmd:          cmdPort,
		PortObservations: obsPort,
		ConnectTimeout:   2 * time.Second,
	})
	require.NoError(t, err)

	client := rc.(*Client)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() {
		if client.Connected() {
			client.Disconnect()
		}
	})
	return client
}

func TestHostClient_Loopback(t *testing.T) {
	rob := &fakeRobot{obs: robot.Frame{"joint_0.pos": 42}}

	client := startHost(t, rob, HostConfig{
		MaxLoopFreq:     200,
		WatchdogTimeout: time.Minute, // not under test here
	})

	// Observations stream from the host.
	obs, err := client.Observation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, robot.Frame{"joint_0.pos": 42}, obs)

	// Actions reach the robot through the host loop.
	_, err = client.SendAction(context.Background(), robot.Frame{"joint_0.pos": -10})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rob.actionCount() > 0
	}, 2*time.Second, 5*time.Millisecond, "host never applied the action")
	assert.Equal(t, robot.Frame{"joint_0.pos": -10}, rob.lastAction())
}

func TestHostClient_WatchdogStopsRobot(t *testing.T) {
	rob := &fakeRobot{obs: robot.Frame{"joint_0.pos": 0}}

	client := startHost(t, rob, HostConfig{
		MaxLoopFreq:     200,
		WatchdogTimeout: 50 * time.Millisecond,
	})

	_, err := client.SendAction(context.Background(), robot.Frame{"joint_0.pos": 5})
	require.NoError(t, err)

	// Go silent; the watchdog must hold the robot.
	require.Eventually(t, func() bool {
		return rob.stopCount() == 1
	}, 2*time.Second, 5*time.Millisecond, "watchdog never fired")

	// The watchdog fires once, not on every tick.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rob.stopCount())

	// Commands resuming rearm the watchdog.
	_, err = client.SendAction(context.Background(), robot.Frame{"joint_0.pos": 6})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return rob.stopCount() == 2
	}, 2*time.Second, 5*time.Millisecond, "watchdog did not rearm")
}

func TestClient_ConnectTimeout(t *testing.T) {
	// Listeners that accept TCP but never speak websocket would hang the
	// dial; unbound ports fail it outright.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	rc, err := robot.New(robot.Config{
		Type:             "piper_client",
		RemoteIP:         "127.0.0.1",
		PortCmd:          port,
		PortObservations: port,
		ConnectTimeout:   100 * time.Millisecond,
	})
	require.NoError(t, err)

	err = rc.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, rc.Connected())
}

func TestClient_RequiresRemoteIP(t *testing.T) {
	_, err := robot.New(robot.Config{Type: "piper_client"})
	assert.Error(t, err)
}

func TestBimanualClient_Features(t *testing.T) {
	rc, err := robot.New(robot.Config{
		Type:     "bimanual_piper_client",
		RemoteIP: "127.0.0.1",
	})
	require.NoError(t, err)

	features := rc.ActionFeatures()
	assert.Len(t, features, 2*robot.PiperJointCount)
	assert.Contains(t, features, "left_joint_0.pos")
	assert.Contains(t, features, "right_joint_6.pos")
}
