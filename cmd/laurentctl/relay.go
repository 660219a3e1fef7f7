package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/laurent-protocol/laurent-go/pkg/lio"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// defaultPulse is used by "pulse" without a duration.
const defaultPulse = time.Second

// runRelay applies action ("on", "off", "toggle", "click" or "pulse") to r.
func runRelay(ctx context.Context, r *lio.Relay, action string, rest []string, out io.Writer) error {
	arg := ""
	if len(rest) > 0 {
		arg = rest[0]
	}

	switch strings.ToLower(action) {
	case "click":
		delay := wire.Seconds(1)
		if arg != "" {
			var err error
			if delay, err = wire.ParseClickDelay(arg); err != nil {
				return err
			}
		}
		if err := r.Click(ctx, delay); err != nil {
			return err
		}
		fmt.Fprintf(out, "relay %d: on for %s\n", r.ID(), delay)
		return nil

	case "pulse":
		d := defaultPulse
		if arg != "" {
			var err error
			if d, err = time.ParseDuration(arg); err != nil {
				return fmt.Errorf("pulse duration: %w", err)
			}
		}
		if err := r.Pulse(ctx, d); err != nil {
			return err
		}
		fmt.Fprintf(out, "relay %d: pulsed %s\n", r.ID(), d)
		return nil
	}

	if arg != "" {
		return fmt.Errorf("%s takes no delay", action)
	}
	a, err := wire.ParseRelayAction(action)
	if err != nil {
		return err
	}
	switch a {
	case wire.RelayOn:
		err = r.On(ctx)
	case wire.RelayOff:
		err = r.Off(ctx)
	default:
		err = r.Toggle(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "relay %d: %s\n", r.ID(), strings.ToLower(a.String()))
	return nil
}
