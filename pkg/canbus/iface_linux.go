//go:build linux

package canbus

import (
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Linux network interface helpers for CAN devices.
//
// Notes:
//   - Bringing interfaces up/down requires CAP_NET_ADMIN. When run without
//     sufficient privileges these return EPERM.
//   - Bitrate changes go through the system `ip` tool (iproute2) since the
//     netlink encoding for CAN link parameters is driver-specific.

func getInterfaceFlags(name string) (uint16, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, fmt.Errorf("canbus: invalid interface name %q: %w", name, err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

func setInterfaceFlags(name string, flags uint16) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return fmt.Errorf("canbus: invalid interface name %q: %w", name, err)
	}
	ifr.SetUint16(flags)
	return unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr)
}

// IsInterfaceUp returns true if the Linux network interface has IFF_UP set.
func IsInterfaceUp(name string) (bool, error) {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_UP != 0, nil
}

// SetInterfaceUp sets IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceUp(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	return setInterfaceFlags(name, flags|unix.IFF_UP)
}

// SetInterfaceDown clears IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceDown(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP == 0 {
		return nil
	}
	return setInterfaceFlags(name, flags&^uint16(unix.IFF_UP))
}

// RequireRootOrCapNetAdmin maps EPERM to a clearer error message advising to
// grant CAP_NET_ADMIN to the binary.
func RequireRootOrCapNetAdmin(err error) error {
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}

// InterfaceOptions controls common CAN interface parameters applied through
// the system `ip` tool.
//
// Changing bitrate typically requires the interface to be DOWN; call
// SetInterfaceDown first and bring it back up after configuring.
type InterfaceOptions struct {
	// Bitrate sets the arbitration bit-rate in bits per second.
	Bitrate *uint32

	// DBitrate sets the CAN-FD data phase bit-rate and enables `fd on`.
	DBitrate *uint32

	// RestartMs sets automatic bus-off recovery delay in milliseconds.
	// Set to 0 to disable auto-restart.
	RestartMs *uint32
}

// ConfigureInterface applies the provided options to a Linux CAN network
// interface by invoking `ip link set`. Only non-nil fields are applied.
// Requires CAP_NET_ADMIN (or root).
func ConfigureInterface(name string, opts InterfaceOptions) error {
	if name == "" {
		return fmt.Errorf("canbus: invalid interface name %q", name)
	}
	if opts.Bitrate == nil && opts.DBitrate == nil && opts.RestartMs == nil {
		return nil
	}
	args := []string{"link", "set", "dev", name, "type", "can"}
	if opts.Bitrate != nil {
		args = append(args, "bitrate", fmt.Sprintf("%d", *opts.Bitrate))
	}
	if opts.DBitrate != nil {
		args = append(args, "dbitrate", fmt.Sprintf("%d", *opts.DBitrate), "fd", "on")
	}
	if opts.RestartMs != nil {
		args = append(args, "restart-ms", fmt.Sprintf("%d", *opts.RestartMs))
	}
	if out, err := exec.Command("ip", args...).CombinedOutput(); err != nil {
		return RequireRootOrCapNetAdmin(fmt.Errorf("ip link set type can failed: %w; output: %s", err, string(out)))
	}
	return nil
}
