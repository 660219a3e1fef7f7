// Command laurentctl drives Laurent relay controllers over the KE protocol.
//
// Usage:
//
//	laurentctl [flags] <command> [args]
//
// Examples:
//
//	# Check that a board answers
//	laurentctl --address 192.168.0.101 ping
//
//	# Switch relay 2 on for 1.5 seconds
//	laurentctl --address 192.168.0.101 --password Laurent relay 2 click .15
//
//	# Follow input events, reconnecting when the board reboots
//	laurentctl --config laurent.yaml watch --events EIN
//
//	# Run a simulated board and announce it over mDNS
//	laurentctl simulate --listen :2424 --advertise lab-board
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
