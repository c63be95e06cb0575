package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/openarm/openarm-go/pkg/canbus"
	"github.com/openarm/openarm-go/pkg/damiao"
	"github.com/openarm/openarm-go/pkg/openarm"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Interface string `long:"interface" short:"i" description:"CAN interface to use, skips interface selection"`
	FD        bool   `long:"fd" description:"Use CAN-FD frames"`
	ScanMax   uint32 `long:"scan-max" default:"15" description:"Highest motor id probed during the scan"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("OpenArm Setup"))
	fmt.Println(dimStyle.Render("-------------"))
	fmt.Println()

	// Step 1: Pick the CAN interface
	iface := c.Interface
	if iface == "" {
		iface = selectInterface()
	}
	ensureInterfaceUp(iface)

	bus, err := canbus.DialSocketCAN(iface, c.FD)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", iface, err)
		os.Exit(1)
	}
	defer bus.Close()

	// Step 2: Scan for motors
	fmt.Printf("Scanning %s for motors (ids 1-%d)...\n", iface, c.ScanMax)
	fmt.Println()
	found := scanMotors(bus, c.ScanMax)
	if len(found) == 0 {
		fmt.Println("No motors found.")
		fmt.Println("Make sure the arm is powered on and the bus bitrate matches.")
		os.Exit(1)
	}
	printFound(found)

	// Step 3: Assign roles and models
	config := &openarm.Config{Interface: iface, FD: c.FD}
	gripper := pickGripper(found)
	model := pickModel("Arm joint motor model", damiao.DM4310)
	for _, fm := range found {
		if gripper != nil && fm.sendID == gripper.sendID {
			continue
		}
		config.Arm = append(config.Arm, openarm.MotorConfig{
			Type:   model.String(),
			SendID: fm.sendID,
			RecvID: fm.recvID,
		})
	}
	if gripper != nil {
		gm := pickModel("Gripper motor model", damiao.DM4310)
		config.Gripper = &openarm.MotorConfig{
			Type:   gm.String(),
			SendID: gripper.sendID,
			RecvID: gripper.recvID,
		}

		// Step 4: Calibrate the gripper travel
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("--- Calibrating Gripper ---"))
		fmt.Println()
		lim, _ := gm.Limits()
		config.GripperCal = calibrateGripper(bus, gripper, lim)
	}

	if err := config.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("-------------------------------"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", openarm.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Power on the arm with: " + headerStyle.Render("openarm enable"))
	return nil
}

// selectInterface lists CAN network interfaces and asks which one the arm
// is on. A single candidate is used without asking.
func selectInterface() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing interfaces: %v\n", err)
		os.Exit(1)
	}

	var candidates []string
	for _, ifc := range ifaces {
		if strings.HasPrefix(ifc.Name, "can") || strings.HasPrefix(ifc.Name, "vcan") {
			candidates = append(candidates, ifc.Name)
		}
	}
	if len(candidates) == 0 {
		fmt.Println("No CAN interfaces found.")
		fmt.Println("Bring one up first, e.g.: ip link set can0 up type can bitrate 1000000")
		os.Exit(1)
	}
	if len(candidates) == 1 {
		fmt.Printf("Using CAN interface %s\n", candidates[0])
		return candidates[0]
	}

	var options []huh.Option[string]
	for _, name := range candidates {
		options = append(options, huh.NewOption(name, name))
	}

	var iface string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which CAN interface is the arm on?").
				Options(options...).
				Value(&iface),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return iface
}

func ensureInterfaceUp(iface string) {
	up, err := canbus.IsInterfaceUp(iface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking %s: %v\n", iface, err)
		os.Exit(1)
	}
	if up {
		return
	}
	fmt.Printf("Interface %s is down, bringing it up...\n", iface)
	if err := canbus.SetInterfaceUp(iface); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", canbus.RequireRootOrCapNetAdmin(err))
		os.Exit(1)
	}
}

type foundMotor struct {
	sendID uint32 // id the refresh was sent to
	recvID uint32 // id the state reply arrived on
}

// scanMotors probes each candidate id with a state refresh and records
// which feedback id answers. Probing one id at a time keeps the reply
// attribution unambiguous.
func scanMotors(bus canbus.Bus, maxID uint32) []foundMotor {
	var found []foundMotor
	seen := make(map[uint32]bool)

	for id := uint32(1); id <= maxID; id++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if err := bus.Send(ctx, damiao.EncodeRefresh(id)); err != nil {
			cancel()
			continue
		}
		for {
			f, err := bus.Receive(ctx)
			if err != nil {
				break
			}
			if f.ID == damiao.BroadcastID || f.Len < 8 || seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			found = append(found, foundMotor{sendID: id, recvID: f.ID})
			fmt.Printf("  Found motor: send 0x%02X, recv 0x%02X\n", id, f.ID)
		}
		cancel()
	}
	return found
}

func printFound(found []foundMotor) {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(found))
	for i, fm := range found {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("0x%02X", fm.sendID),
			fmt.Sprintf("0x%02X", fm.recvID),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Send ID", "Recv ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	fmt.Println()
	fmt.Println(t.Render())
	fmt.Println()
}

// pickGripper asks which of the found motors drives the gripper.
func pickGripper(found []foundMotor) *foundMotor {
	options := []huh.Option[int]{huh.NewOption("No gripper", -1)}
	for i, fm := range found {
		label := fmt.Sprintf("Motor send 0x%02X / recv 0x%02X", fm.sendID, fm.recvID)
		options = append(options, huh.NewOption(label, i))
	}

	idx := -1
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which motor drives the gripper?").
				Description("Usually the highest id on the bus").
				Options(options...).
				Value(&idx),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	if idx < 0 {
		return nil
	}
	return &found[idx]
}

func pickModel(title string, def damiao.MotorType) damiao.MotorType {
	models := []damiao.MotorType{
		damiao.DM4310, damiao.DM4310_48V,
		damiao.DM4340, damiao.DM4340_48V,
		damiao.DM6006, damiao.DM8006, damiao.DM8009,
		damiao.DMG6220,
	}
	var options []huh.Option[damiao.MotorType]
	for _, m := range models {
		options = append(options, huh.NewOption(m.String(), m))
	}

	choice := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[damiao.MotorType]().
				Title(title).
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return choice
}

// calibrateGripper records the open and closed endpoint positions. The
// motor stays unpowered so the user can move the jaw by hand.
func calibrateGripper(bus canbus.Bus, gripper *foundMotor, lim damiao.Limits) openarm.GripperCalibration {
	open := readEndpoint(bus, gripper, lim, "Move the gripper fully OPEN, then continue.")
	closed := readEndpoint(bus, gripper, lim, "Move the gripper fully CLOSED, then continue.")

	fmt.Println()
	fmt.Printf("Open position:   %+.3f rad\n", open)
	fmt.Printf("Closed position: %+.3f rad\n", closed)
	fmt.Println()
	fmt.Println(successStyle.Render("Gripper calibrated."))

	return openarm.GripperCalibration{OpenPosition: open, ClosedPosition: closed}
}

func readEndpoint(bus canbus.Bus, gripper *foundMotor, lim damiao.Limits, prompt string) float64 {
	waitForUser(prompt)
	pos, err := readPosition(bus, gripper, lim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading gripper position: %v\n", err)
		os.Exit(1)
	}
	return pos
}

// readPosition asks the gripper motor for one state report and decodes
// the position field.
func readPosition(bus canbus.Bus, gripper *foundMotor, lim damiao.Limits) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := bus.Send(ctx, damiao.EncodeRefresh(gripper.sendID)); err != nil {
		return 0, err
	}
	for {
		f, err := bus.Receive(ctx)
		if err != nil {
			return 0, fmt.Errorf("no state reply from 0x%02X: %w", gripper.sendID, err)
		}
		if f.ID != gripper.recvID {
			continue
		}
		s, err := damiao.DecodeState(f, lim)
		if err != nil {
			return 0, err
		}
		return s.Position, nil
	}
}

func waitForUser(prompt string) {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}
