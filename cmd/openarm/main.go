package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup   SetupCommand   `command:"setup" description:"Scan the CAN bus for motors and calibrate the gripper"`
	Enable  EnableCommand  `command:"enable" description:"Power on all configured motors"`
	Disable DisableCommand `command:"disable" description:"Power off all configured motors"`
	Gripper GripperCommand `command:"gripper" description:"Open, close or move the gripper"`
	Monitor MonitorCommand `command:"monitor" description:"Live joint position monitor"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "OpenArm - robot arm control CLI over CAN and CAN-FD"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
