// Package openarm provides CAN bus control for Damiao-based robot arms.
//
// This is a Go implementation of the OpenArm control stack: it speaks the
// Damiao DM-series MIT control protocol over Linux SocketCAN (classic CAN
// or CAN-FD) and coordinates arm joints and a gripper.
//
// # Installation
//
//	go install github.com/openarm/openarm-go/cmd/openarm@latest
//
// # Usage
//
// First, run setup to detect your motors and calibrate the gripper:
//
//	openarm setup
//
// Then drive the hardware:
//
//	openarm enable
//	openarm gripper open --hold 3
//	openarm monitor
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/openarm: CLI with setup, enable/disable, gripper and monitor commands
//   - cmd/openarm-dump: candump-style diagnostic frame printer
//   - pkg/canbus: CAN/CAN-FD frames, SocketCAN driver, loopback bus, mux
//   - pkg/damiao: DM-series motor protocol (MIT control, state feedback)
//   - pkg/openarm: arm/gripper coordination, configuration, calibration
//   - pkg/control: fixed-rate control loop and gripper trajectories
package openarm
