package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/piperlink/pkg/robot"
	"github.com/gwillem/piperlink/pkg/teleop"

	// Registers the piper_client and bimanual_piper_client robot types.
	_ "github.com/gwillem/piperlink/pkg/remote"
)

type TeleoperateCommand struct {
	RobotType    string `long:"robot.type" default:"piper" description:"Robot type (piper, so101_follower)"`
	RobotPort    string `long:"robot.port" description:"Robot port (CAN channel or serial port)"`
	RobotID      string `long:"robot.id" default:"FOLLOWER" description:"Robot ID"`
	RobotCameras string `long:"robot.cameras" default:"{}" description:"Cameras mapping literal"`

	TeleopType string `long:"teleop.type" default:"so101_leader" description:"Teleoperator type"`
	TeleopPort string `long:"teleop.port" description:"Teleop serial port"`
	TeleopID   string `long:"teleop.id" default:"LEADER" description:"Teleop ID"`

	Bimanual bool   `long:"bimanual" description:"Drive two arms (left/right)"`
	RemoteIP string `long:"remote_ip" description:"Connect to a remote host instead of local hardware"`

	LeftArmPortTeleop  string `long:"left_arm_port_teleop" default:"/dev/ttyACM0" description:"Left leader serial port (bimanual)"`
	RightArmPortTeleop string `long:"right_arm_port_teleop" default:"/dev/ttyACM1" description:"Right leader serial port (bimanual)"`
	LeftArmPortRobot   string `long:"left_arm_port_robot" default:"left_piper" description:"Left follower CAN channel (bimanual)"`
	RightArmPortRobot  string `long:"right_arm_port_robot" default:"right_piper" description:"Right follower CAN channel (bimanual)"`

	TeleopCalibrationDir string `long:"teleop_calibration_dir" description:"Directory holding leader calibration files"`
	LeftArmCalibName     string `long:"left_arm_calib_name" default:"left_arm" description:"Left leader calibration file base name"`
	RightArmCalibName    string `long:"right_arm_calib_name" default:"right_arm" description:"Right leader calibration file base name"`

	FPS         int  `long:"fps" default:"60" description:"Control loop frequency"`
	TeleopTimeS int  `long:"teleop_time_s" description:"Stop after this many seconds (0: run until quit)"`
	Mirror      bool `long:"mirror" description:"Mirror mode: invert shoulder_pan and wrist_roll positions"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// featurePalette assigns distinct colors to action features in order. With
// bimanual leaders there are twelve traces, so the palette wraps.
var featurePalette = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
	"99",  // purple
	"214", // amber
	"190", // lime
	"45",  // sky
	"213", // pink
	"87",  // aqua
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type teleopModel struct {
	ctrl          *teleop.Controller
	features      []string
	colors        map[string]string
	chart         *streamlinechart.Model
	width         int      // terminal width
	height        int      // terminal height
	logs          []string // last N log messages
	quitting      bool
	lastPositions robot.Frame // track previous positions to detect movement
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any position has changed from the last state
func (m *teleopModel) hasMovement(positions robot.Frame) bool {
	if m.lastPositions == nil {
		return true // first reading, consider it movement
	}
	for name, pos := range positions {
		if lastPos, ok := m.lastPositions[name]; !ok || pos != lastPos {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller, features []string) teleopModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	// Set up data set styles for each feature
	colors := make(map[string]string, len(features))
	for i, name := range features {
		color := featurePalette[i%len(featurePalette)]
		colors[name] = color
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:     ctrl,
		features: features,
		colors:   colors,
		chart:    &chart,
	}
}

func (m teleopModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := teleop.State(msg)
		if state.Positions != nil {
			// Only update chart if there's movement (freeze when idle)
			if m.hasMovement(state.Positions) {
				for name, pos := range state.Positions {
					m.chart.PushDataSet(name, pos)
				}
				m.chart.DrawAll()
				m.lastPositions = state.Positions
			}
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Piperlink Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.FPS()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m teleopModel) renderLegend() string {
	var items []string
	for _, name := range m.features {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.colors[name])).Bold(true)
		item := colorStyle.Render("━━") + " " + name
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	robotCfg, teleopCfg, err := c.configs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rob, err := robot.New(robotCfg)
	if err != nil {
		log.Fatalf("Failed to create robot: %v", err)
	}
	tele, err := teleop.New(teleopCfg)
	if err != nil {
		log.Fatalf("Failed to create teleoperator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tele.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect teleoperator: %v", err)
	}
	defer tele.Disconnect()

	if err := rob.Connect(ctx); err != nil {
		tele.Disconnect()
		log.Fatalf("Failed to connect robot: %v", err)
	}
	defer rob.Disconnect()

	ctrl := teleop.NewController(tele, rob, teleop.ControllerConfig{
		FPS:      c.FPS,
		Mirror:   c.Mirror,
		Duration: time.Duration(c.TeleopTimeS) * time.Second,
	})

	// Start controller in background
	go func() {
		if err := ctrl.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Controller error: %v", err)
		}
	}()

	// Run TUI
	p := tea.NewProgram(initialTeleopModel(ctrl, tele.ActionFeatures()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}

// configs resolves the flat flag surface into robot and teleoperator
// configurations, falling back to the saved setup file for local SO-101
// pairs without explicit ports.
func (c *TeleoperateCommand) configs() (robot.Config, teleop.Config, error) {
	cams, err := robot.ParseCameras(c.RobotCameras)
	if err != nil {
		return robot.Config{}, teleop.Config{}, err
	}

	var robotCfg robot.Config
	switch {
	case c.Bimanual && c.RemoteIP != "":
		robotCfg = robot.Config{
			Type:     "bimanual_piper_client",
			ID:       c.RobotID,
			RemoteIP: c.RemoteIP,
			Cameras:  cams,
		}
	case c.Bimanual:
		robotCfg = robot.Config{
			Type:      "bimanual_piper_follower",
			ID:        c.RobotID,
			LeftPort:  c.LeftArmPortRobot,
			RightPort: c.RightArmPortRobot,
			Cameras:   cams,
		}
	case c.RemoteIP != "":
		robotCfg = robot.Config{
			Type:     "piper_client",
			ID:       c.RobotID,
			RemoteIP: c.RemoteIP,
			Cameras:  cams,
		}
	default:
		port := c.RobotPort
		if port == "" && c.RobotType == "piper" {
			port = c.RightArmPortRobot
		}
		robotCfg = robot.Config{
			Type:    c.RobotType,
			Port:    port,
			ID:      c.RobotID,
			Cameras: cams,
		}
	}

	var teleopCfg teleop.Config
	if c.Bimanual {
		teleopCfg = teleop.Config{
			Type:           "bimanual_so101_leader",
			ID:             c.TeleopID,
			LeftPort:       c.LeftArmPortTeleop,
			RightPort:      c.RightArmPortTeleop,
			CalibrationDir: c.TeleopCalibrationDir,
			LeftCalibName:  c.LeftArmCalibName,
			RightCalibName: c.RightArmCalibName,
		}
	} else {
		teleopCfg = teleop.Config{
			Type:           c.TeleopType,
			Port:           c.TeleopPort,
			ID:             c.TeleopID,
			CalibrationDir: c.TeleopCalibrationDir,
		}
	}

	// Local SO-101 pairs can run straight off the saved setup file.
	if robotCfg.Type == "so101_follower" && (robotCfg.Port == "" || teleopCfg.Port == "") {
		setup, err := robot.LoadSetup()
		if err != nil {
			return robot.Config{}, teleop.Config{},
				fmt.Errorf("no ports specified and cannot load %s (run 'piperlink setup' first): %w",
					robot.DefaultConfigFile, err)
		}
		if robotCfg.Port == "" {
			robotCfg.Port = setup.Follower.Port
			robotCfg.Calibration = setup.Follower.Calibration
		}
		if teleopCfg.Port == "" {
			teleopCfg.Port = setup.Leader.Port
			teleopCfg.Calibration = setup.Leader.Calibration
		}
		fmt.Printf("Loaded configuration from %s\n", robot.DefaultConfigFile)
	}

	return robotCfg, teleopCfg, nil
}
