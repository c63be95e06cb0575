// openarm-dump prints raw CAN traffic, candump style. Useful for checking
// that motors answer at all before running setup.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/openarm/openarm-go/pkg/canbus"
)

type options struct {
	FD   bool     `long:"fd" description:"Open the socket with CAN-FD frames enabled"`
	ID   []uint32 `long:"id" description:"Only print frames with this id (repeatable)"`
	Log  bool     `long:"log" description:"Emit structured log records instead of candump lines"`
	Args struct {
		Interface string `positional-arg-name:"interface" description:"CAN interface, e.g. can0"`
	} `positional-args:"true" required:"true"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	bus, err := canbus.DialSocketCAN(opts.Args.Interface, opts.FD)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", opts.Args.Interface, err)
		os.Exit(1)
	}
	defer bus.Close()

	var filter canbus.FrameFilter
	if len(opts.ID) > 0 {
		filter = canbus.ByIDs(opts.ID...)
	}

	if opts.Log {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		bus = canbus.NewLoggedBusWithFilter(bus, logger, slog.LevelInfo, canbus.LogRead, filter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// A mux owns the receive loop; we consume one filtered subscription.
	mux := canbus.NewMux(bus)
	defer mux.Close()
	frames, unsub := mux.Subscribe(filter, 64)
	defer unsub()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				// Receive failed or the bus went away.
				if ctx.Err() == nil {
					fmt.Fprintln(os.Stderr, "Receive stopped.")
					os.Exit(1)
				}
				return
			}
			if !opts.Log {
				fmt.Printf("(%s)  %s  %s\n",
					time.Now().Format("15:04:05.000"), opts.Args.Interface, f)
			}
		case <-ctx.Done():
			return
		}
	}
}
