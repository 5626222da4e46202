package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gwillem/piperlink/pkg/remote"
	"github.com/gwillem/piperlink/pkg/robot"
)

type HostCommand struct {
	RobotType string `long:"robot.type" default:"piper" description:"Robot type (piper, bimanual_piper_follower, so101_follower)"`
	RobotPort string `long:"robot.port" default:"can0" description:"Robot port (CAN channel or serial port)"`
	RobotID   string `long:"robot.id" default:"FOLLOWER" description:"Robot ID"`

	LeftArmPort  string `long:"left_arm_port" default:"left_piper" description:"Left arm CAN channel (bimanual)"`
	RightArmPort string `long:"right_arm_port" default:"right_piper" description:"Right arm CAN channel (bimanual)"`

	PortCmd          int `long:"host.port_cmd" default:"5555" description:"Command port"`
	PortObservations int `long:"host.port_observations" default:"5556" description:"Observation port"`
	WatchdogMs       int `long:"host.watchdog_ms" default:"500" description:"Stop the robot after this many ms without commands"`
	Hz               int `long:"host.hz" default:"60" description:"Max host loop frequency"`
	ConnectionTimeS  int `long:"host.connection_time_s" default:"3600" description:"How long to stay in host mode"`
}

func (c *HostCommand) Execute(args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := robot.Config{
		Type:      c.RobotType,
		Port:      c.RobotPort,
		ID:        c.RobotID,
		LeftPort:  c.LeftArmPort,
		RightPort: c.RightArmPort,
	}

	log.Info().Str("type", cfg.Type).Msg("Configuring robot")
	rob, err := robot.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid robot configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("robot", rob.Name()).Msg("Connecting robot")
	if err := rob.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("Connecting robot failed")
	}
	defer func() {
		log.Info().Msg("Shutting down host")
		if err := rob.Disconnect(); err != nil {
			log.Error().Err(err).Msg("Disconnecting robot failed")
		}
	}()

	host := remote.NewHost(rob, remote.HostConfig{
		PortCmd:          c.PortCmd,
		PortObservations: c.PortObservations,
		WatchdogTimeout:  time.Duration(c.WatchdogMs) * time.Millisecond,
		MaxLoopFreq:      c.Hz,
		ConnectionTime:   time.Duration(c.ConnectionTimeS) * time.Second,
		Logger:           log,
	})

	if err := host.Serve(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Host stopped")
		return err
	}
	log.Info().Msg("Finished host mode cleanly")
	return nil
}
