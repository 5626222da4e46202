// Package remote links a robot host to a teleoperation client over the
// network. The host binds a command port and an observation port; clients
// push action frames to the first and receive observation frames from the
// second. Both directions conflate: only the newest message matters.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gwillem/piperlink/pkg/robot"
)

// Host loop defaults, matching the piper host protocol.
const (
	DefaultWatchdogTimeout = 500 * time.Millisecond
	DefaultMaxLoopFreq     = 60
	DefaultConnectionTime  = time.Hour
)

// HostConfig configures the host loop and its listeners. A port of 0 binds
// an ephemeral port, discoverable through CmdAddr/ObservationsAddr.
type HostConfig struct {
	PortCmd          int
	PortObservations int
	// WatchdogTimeout stops the robot when no command arrives for this long.
	WatchdogTimeout time.Duration
	// MaxLoopFreq caps the host loop frequency in Hz.
	MaxLoopFreq int
	// ConnectionTime is how long the robot stays in host mode.
	ConnectionTime time.Duration
	Logger         zerolog.Logger
}

// Host exposes a connected robot for remote teleoperation.
type Host struct {
	rob      robot.Robot
	cfg      HostConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader

	// cmdCh carries the newest decoded command frame.
	cmdCh chan robot.Frame

	mu      sync.Mutex
	clients map[chan []byte]struct{}

	cmdLn net.Listener
	obsLn net.Listener
}

// NewHost wraps a robot for serving. The robot must be connected before
// Serve is called.
func NewHost(rob robot.Robot, cfg HostConfig) *Host {
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if cfg.MaxLoopFreq <= 0 {
		cfg.MaxLoopFreq = DefaultMaxLoopFreq
	}
	if cfg.ConnectionTime <= 0 {
		cfg.ConnectionTime = DefaultConnectionTime
	}
	return &Host{
		rob:     rob,
		cfg:     cfg,
		log:     cfg.Logger,
		cmdCh:   make(chan robot.Frame, 1),
		clients: map[chan []byte]struct{}{},
	}
}

// Listen binds the command and observation ports. Serve calls it if needed;
// it is exposed so callers can bind port 0 and discover the chosen ports.
func (h *Host) Listen() error {
	cmdLn, err := net.Listen("tcp", fmt.Sprintf(":%d", h.cfg.PortCmd))
	if err != nil {
		return fmt.Errorf("bind command port: %w", err)
	}
	obsLn, err := net.Listen("tcp", fmt.Sprintf(":%d", h.cfg.PortObservations))
	if err != nil {
		cmdLn.Close()
		return fmt.Errorf("bind observation port: %w", err)
	}
	h.cmdLn = cmdLn
	h.obsLn = obsLn
	return nil
}

// CmdAddr returns the bound command listener address.
func (h *Host) CmdAddr() net.Addr { return h.cmdLn.Addr() }

// ObservationsAddr returns the bound observation listener address.
func (h *Host) ObservationsAddr() net.Addr { return h.obsLn.Addr() }

// Serve runs the host loop until the context is cancelled or the connection
// time elapses.
func (h *Host) Serve(ctx context.Context) error {
	if h.cmdLn == nil {
		if err := h.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.ConnectionTime)
	defer cancel()

	cmdSrv := &http.Server{Handler: http.HandlerFunc(h.handleCmd)}
	obsSrv := &http.Server{Handler: http.HandlerFunc(h.handleObservations)}
	go cmdSrv.Serve(h.cmdLn)
	go obsSrv.Serve(h.obsLn)
	defer func() {
		cmdSrv.Close()
		obsSrv.Close()
	}()

	h.log.Info().
		Str("robot", h.rob.Name()).
		Str("cmd", h.cmdLn.Addr().String()).
		Str("observations", h.obsLn.Addr().String()).
		Msg("Waiting for commands...")

	err := h.run(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != context.Canceled {
		// Connection time elapsed: a normal end of host mode.
		return nil
	}
	return err
}

func (h *Host) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.MaxLoopFreq))
	defer ticker.Stop()

	firstCommandReceived := false
	lastCmdTime := time.Now()
	watchdogActive := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		// Apply the newest command, if any arrived since the last tick.
		select {
		case action := <-h.cmdCh:
			if !firstCommandReceived {
				h.log.Info().Msg("First command received. Starting teleoperation.")
				firstCommandReceived = true
			}
			lastCmdTime = time.Now()
			watchdogActive = false
			if _, err := h.rob.SendAction(ctx, action); err != nil {
				h.log.Error().Err(err).Msg("Sending action failed")
			}
		default:
		}

		if firstCommandReceived && !watchdogActive && time.Since(lastCmdTime) > h.cfg.WatchdogTimeout {
			h.log.Warn().
				Dur("timeout", h.cfg.WatchdogTimeout).
				Msg("Command not received in time. Stopping the robot.")
			watchdogActive = true
			if err := h.rob.Stop(ctx); err != nil {
				h.log.Error().Err(err).Msg("Stopping robot failed")
			}
		}

		obs, err := h.rob.Observation(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Reading observation failed")
			continue
		}
		data, err := json.Marshal(obs)
		if err != nil {
			h.log.Error().Err(err).Msg("Observation serialization failed")
			continue
		}
		if h.broadcast(data) == 0 {
			h.log.Debug().Msg("Dropping observation, no client connected")
		}
	}
}

// broadcast pushes an observation to every connected client, newest wins.
// Returns the number of clients.
func (h *Host) broadcast(data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- data
		}
	}
	return len(h.clients)
}

func (h *Host) handleCmd(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Command upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Command client connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Command client disconnected")
			return
		}
		var action robot.Frame
		if err := json.Unmarshal(data, &action); err != nil {
			h.log.Error().Err(err).Msg("Message parsing failed")
			continue
		}
		// Conflate: replace a pending command instead of queueing.
		select {
		case h.cmdCh <- action:
		default:
			select {
			case <-h.cmdCh:
			default:
			}
			h.cmdCh <- action
		}
	}
}

func (h *Host) handleObservations(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Observation upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Observation client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Observation client disconnected")
	}()

	// Drain the read side so peer close frames are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for data := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
