package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/laurent-protocol/laurent-go/pkg/connection"
	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

func newWatchCmd(get func() *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print device events, reconnecting when the connection drops",
		Long: `Print device events until interrupted.

Input (EIN) events are enabled when no --events are configured. The
connection is re-established with backoff whenever it is lost, and pings
detect a board that stops answering.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if len(a.cfg.Events) == 0 {
				a.cfg.Events = []string{wire.EventKindInput.String()}
			}
			return a.watch(cmd.Context(), count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many events (0: run until interrupted)")
	return cmd
}

// watch prints events from a managed connection until ctx ends or limit
// events were printed.
func (a *app) watch(ctx context.Context, limit int) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	m := connection.NewManager(a.dial, connection.Config{
		Backoff:        a.cfg.BackoffConfig(),
		KeepAlive:      a.cfg.KeepAliveConfig(),
		Setup:          a.setup,
		Logger:         a.logger,
		ProtocolLogger: a.plog,
	})
	m.OnStateChange(func(_, s connection.State) {
		a.logger.Info("connection", "state", s.String())
	})
	m.OnReconnecting(func(attempt int, delay time.Duration, err error) {
		a.logger.Warn("connect failed", "attempt", attempt, "retry_in", delay, "error", err)
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	seen := 0
	for limit <= 0 || seen < limit {
		gw, err := m.WaitConnected(ctx)
		if err != nil {
			break
		}
		n, err := a.printEvents(ctx, gw, limit-seen)
		seen += n
		if err != nil {
			break
		}
	}

	m.Close()
	err := <-runErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printEvents prints events of one connection until it ends, ctx ends or
// limit events were printed. A non-positive limit means no limit.
func (a *app) printEvents(ctx context.Context, gw *gateway.StreamGateway, limit int) (int, error) {
	sub := gw.Subscribe()
	defer sub.Close()

	n := 0
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return n, nil
			}
			fmt.Fprintf(a.out, "%s %s\n", time.Now().Format(time.TimeOnly), ev)
			n++
			if limit > 0 && n >= limit {
				return n, errLimitReached
			}
		case <-gw.Done():
			return n, nil
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
}

var errLimitReached = errors.New("event limit reached")
