package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gwillem/piperlink/pkg/robot"
)

func init() {
	robot.Register("piper_client", func(cfg robot.Config) (robot.Robot, error) {
		return newClient(cfg, "piper_client", robot.PiperJointNames())
	})
	robot.Register("bimanual_piper_client", func(cfg robot.Config) (robot.Robot, error) {
		joints := robot.PiperJointNames()
		features := make([]string, 0, 2*len(joints))
		for _, name := range joints {
			features = append(features, robot.LeftPrefix+name)
		}
		for _, name := range joints {
			features = append(features, robot.RightPrefix+name)
		}
		return newClient(cfg, "bimanual_piper_client", features)
	})
}

// Client is a robot.Robot backed by a remote host: actions go out over the
// command socket, observations stream in over the observation socket. The
// teleoperation loop does not know the difference.
type Client struct {
	id       string
	features []string
	remoteIP string
	portCmd  int
	portObs  int

	connectTimeout time.Duration
	pollTimeout    time.Duration
	log            zerolog.Logger

	cmdConn *websocket.Conn
	obsConn *websocket.Conn

	// obsCh carries the newest observation decoded by the read pump.
	obsCh chan robot.Frame

	mu        sync.Mutex
	lastObs   robot.Frame
	connected bool
}

func newClient(cfg robot.Config, defaultID string, features []string) (*Client, error) {
	if cfg.RemoteIP == "" {
		return nil, fmt.Errorf("%s requires a remote IP", defaultID)
	}
	id := cfg.ID
	if id == "" {
		id = defaultID
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = robot.DefaultConnectTimeout
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = robot.DefaultPollTimeout
	}
	return &Client{
		id:             id,
		features:       features,
		remoteIP:       cfg.RemoteIP,
		portCmd:        cfg.CmdPort(),
		portObs:        cfg.ObservationsPort(),
		connectTimeout: connectTimeout,
		pollTimeout:    pollTimeout,
		log:            zerolog.Nop(),
		obsCh:          make(chan robot.Frame, 1),
	}, nil
}

// SetLogger attaches a logger; the default discards everything.
func (c *Client) SetLogger(log zerolog.Logger) {
	c.log = log
}

func (c *Client) Name() string { return c.id }

// Connect dials the host and waits for the first observation to arrive, so
// a missing or unreachable host fails fast instead of on the first read.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected {
		return fmt.Errorf("%s: %w", c.id, robot.ErrDeviceAlreadyConnected)
	}

	cmdURL := fmt.Sprintf("ws://%s:%d/", c.remoteIP, c.portCmd)
	cmdConn, _, err := websocket.DefaultDialer.DialContext(ctx, cmdURL, nil)
	if err != nil {
		return fmt.Errorf("dial command socket %s: %w", cmdURL, err)
	}

	obsURL := fmt.Sprintf("ws://%s:%d/", c.remoteIP, c.portObs)
	obsConn, _, err := websocket.DefaultDialer.DialContext(ctx, obsURL, nil)
	if err != nil {
		cmdConn.Close()
		return fmt.Errorf("dial observation socket %s: %w", obsURL, err)
	}

	c.cmdConn = cmdConn
	c.obsConn = obsConn
	go c.readPump()

	// The host streams observations continuously; not hearing one within
	// the connect timeout means it is not really there.
	select {
	case obs := <-c.obsCh:
		c.mu.Lock()
		c.lastObs = obs
		c.mu.Unlock()
	case <-time.After(c.connectTimeout):
		cmdConn.Close()
		obsConn.Close()
		c.cmdConn = nil
		c.obsConn = nil
		return fmt.Errorf("timeout waiting for host at %s: %w", c.remoteIP, robot.ErrDeviceNotConnected)
	case <-ctx.Done():
		cmdConn.Close()
		obsConn.Close()
		c.cmdConn = nil
		c.obsConn = nil
		return ctx.Err()
	}

	c.connected = true
	c.log.Info().Str("remote_ip", c.remoteIP).Msg("Connected to host")
	return nil
}

func (c *Client) readPump() {
	for {
		_, data, err := c.obsConn.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("Observation stream closed")
			return
		}
		var obs robot.Frame
		if err := json.Unmarshal(data, &obs); err != nil {
			c.log.Error().Err(err).Msg("Observation parsing failed")
			continue
		}
		// Conflate: keep only the newest observation.
		select {
		case c.obsCh <- obs:
		default:
			select {
			case <-c.obsCh:
			default:
			}
			c.obsCh <- obs
		}
	}
}

func (c *Client) Disconnect() error {
	if !c.connected {
		return fmt.Errorf("%s: %w", c.id, robot.ErrDeviceNotConnected)
	}
	c.connected = false
	err1 := c.cmdConn.Close()
	err2 := c.obsConn.Close()
	c.cmdConn = nil
	c.obsConn = nil
	if err1 != nil {
		return err1
	}
	return err2
}

func (c *Client) Connected() bool { return c.connected }

func (c *Client) ObservationFeatures() []string { return c.features }

func (c *Client) ActionFeatures() []string { return c.features }

// Observation returns the newest observation from the host, waiting at most
// the poll timeout before falling back to the last one seen.
func (c *Client) Observation(ctx context.Context) (robot.Frame, error) {
	if !c.connected {
		return nil, fmt.Errorf("%s: %w", c.id, robot.ErrDeviceNotConnected)
	}
	select {
	case obs := <-c.obsCh:
		c.mu.Lock()
		c.lastObs = obs
		c.mu.Unlock()
	case <-time.After(c.pollTimeout):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastObs == nil {
		return nil, fmt.Errorf("%s: no observation received yet", c.id)
	}
	return c.lastObs.Clone(), nil
}

// SendAction pushes an action frame to the host.
func (c *Client) SendAction(ctx context.Context, action robot.Frame) (robot.Frame, error) {
	if !c.connected {
		return nil, fmt.Errorf("%s: %w", c.id, robot.ErrDeviceNotConnected)
	}
	data, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	c.mu.Lock()
	err = c.cmdConn.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send action: %w", err)
	}
	return action, nil
}

// Stop commands the arm to hold its last observed position. The host
// watchdog covers the case where we simply go silent.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	obs := c.lastObs
	c.mu.Unlock()
	if obs == nil {
		return nil
	}
	_, err := c.SendAction(ctx, obs)
	return err
}
