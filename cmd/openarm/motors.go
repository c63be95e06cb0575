package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/openarm/openarm-go/pkg/damiao"
	"github.com/openarm/openarm-go/pkg/openarm"
)

type EnableCommand struct {
	Clear bool `long:"clear" description:"Clear latched motor faults before enabling"`
}

type DisableCommand struct{}

// loadArm opens the configured interface with all motors registered.
func loadArm() (*openarm.Arm, *openarm.Config) {
	cfg, err := openarm.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'openarm setup' first.")
		os.Exit(1)
	}
	arm, err := cfg.OpenArm()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", cfg.Interface, err)
		os.Exit(1)
	}
	return arm, cfg
}

// powerSequence sends a command to every motor while frame parsing is
// suspended. Motors echo a state frame in reply to power commands; those
// must not land in the state cache mid-transition, so the sequence runs
// in ignore mode and drains the echoes before re-arming the parsers.
func powerSequence(ctx context.Context, arm *openarm.Arm, cmd func(context.Context) error) error {
	arm.SetCallbackModeAll(damiao.CallbackIgnore)
	defer arm.SetCallbackModeAll(damiao.CallbackState)

	if err := cmd(ctx); err != nil {
		return err
	}
	_, err := arm.RecvAll(ctx, 20*time.Millisecond)
	return err
}

func (c *EnableCommand) Execute(args []string) error {
	arm, cfg := loadArm()
	defer arm.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.Clear {
		if err := powerSequence(ctx, arm, arm.ClearErrorAll); err != nil {
			return fmt.Errorf("clear faults: %w", err)
		}
		fmt.Println("Faults cleared.")
	}

	if err := powerSequence(ctx, arm, arm.EnableAll); err != nil {
		return fmt.Errorf("enable: %w", err)
	}

	// Read back the post-enable state to confirm.
	if err := arm.RefreshAll(ctx); err != nil {
		return err
	}
	if _, err := arm.RecvAll(ctx, 50*time.Millisecond); err != nil {
		return err
	}
	if err := arm.Arm().Err(); err != nil {
		return err
	}

	fmt.Printf("Enabled %d motor(s) on %s.\n", len(arm.Devices()), cfg.Interface)
	return nil
}

func (c *DisableCommand) Execute(args []string) error {
	arm, cfg := loadArm()
	defer arm.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := powerSequence(ctx, arm, arm.DisableAll); err != nil {
		return fmt.Errorf("disable: %w", err)
	}

	fmt.Printf("Disabled %d motor(s) on %s.\n", len(arm.Devices()), cfg.Interface)
	return nil
}
