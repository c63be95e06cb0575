package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/openarm/openarm-go/pkg/control"
	"github.com/openarm/openarm-go/pkg/openarm"
)

type MonitorCommand struct {
	Hz int `long:"hz" default:"60" description:"Sampling frequency"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors - distinct colors per joint slot, gripper last.
var jointColors = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"33",  // blue
	"135", // purple
	"201", // magenta
}

const gripperColor = "255" // white

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func jointName(i int) string  { return fmt.Sprintf("joint %d", i+1) }
func jointColor(i int) string { return jointColors[i%len(jointColors)] }

type monitorModel struct {
	ctrl       *control.Controller
	chart      *streamlinechart.Model
	joints     int
	hasGripper bool
	width      int      // terminal width
	height     int      // terminal height
	logs       []string // last N log messages
	quitting   bool
	last       *control.State // previous sample, to freeze the chart when idle
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks whether any joint or the gripper moved since the
// previous sample.
func (m *monitorModel) hasMovement(s control.State) bool {
	if m.last == nil {
		return true // first reading, consider it movement
	}
	for i, pos := range s.Joints {
		if i >= len(m.last.Joints) || pos != m.last.Joints[i] {
			return true
		}
	}
	return s.HasGripper && s.Aperture != m.last.Aperture
}

// Messages from the controller
type stateMsg control.State
type logMsg string

func waitForState(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
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

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(ctrl *control.Controller, joints int, hasGripper bool) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-3.5, 3.5),
	)

	for i := 0; i < joints; i++ {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(i)))
		chart.SetDataSetStyles(jointName(i), runes.ThinLineStyle, style)
	}
	if hasGripper {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gripperColor))
		chart.SetDataSetStyles("gripper", runes.ThinLineStyle, style)
	}

	return monitorModel{
		ctrl:       ctrl,
		chart:      &chart,
		joints:     joints,
		hasGripper: hasGripper,
	}
}

func (m monitorModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		state := control.State(msg)
		// Only update chart if there's movement (freeze when idle)
		if m.hasMovement(state) {
			for i, pos := range state.Joints {
				m.chart.PushDataSet(jointName(i), pos)
			}
			if state.HasGripper {
				m.chart.PushDataSet("gripper", state.Aperture)
			}
			m.chart.DrawAll()
			m.last = &state
		}
		if state.Error != nil {
			m.addLog(state.Error.Error())
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("OpenArm Monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
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

func (m *monitorModel) renderLegend() string {
	var items []string
	for i := 0; i < m.joints; i++ {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(i))).Bold(true)
		items = append(items, colorStyle.Render("--")+" "+jointName(i))
	}
	if m.hasGripper {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(gripperColor)).Bold(true)
		items = append(items, colorStyle.Render("--")+" gripper")
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	cfg, err := openarm.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'openarm setup' first.")
		os.Exit(1)
	}
	arm, err := cfg.OpenArm()
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Interface, err)
	}
	defer arm.Close()

	fmt.Printf("Loaded configuration from %s\n", openarm.DefaultConfigFile)

	ctrl := control.NewController(arm, control.Config{Hz: c.Hz})

	// Start controller in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ctrl.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Controller error: %v", err)
		}
	}()

	// Run TUI
	model := initialMonitorModel(ctrl, len(cfg.Arm), cfg.HasGripper())
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
