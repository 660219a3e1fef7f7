package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/lio"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

const shellHelp = `
Commands:
  ping                           - check that the controller answers
  info                           - print the module name
  login <password>               - send the password
  relay <id> <action> [delay]    - on, off, toggle, click [.N|N], pulse [duration]
  status <id>                    - read a relay state
  line <id>                      - read an input line
  wait <id> [timeout]            - wait for the next change on an input line
  events <kind> <on|off>         - switch event reports (EIN, TIME, RELE, ...)
  quit                           - leave the shell
`

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

func newShellCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with one controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			return a.withGateway(cmd.Context(), func(gw *gateway.StreamGateway) error {
				rl, err := readline.NewEx(&readline.Config{
					Prompt:          "laurent> ",
					InterruptPrompt: "^C",
					EOFPrompt:       "exit",
				})
				if err != nil {
					return fmt.Errorf("failed to create readline: %w", err)
				}
				defer rl.Close()

				sh := &shell{gw: gw, out: rl.Stdout()}
				return sh.run(cmd.Context(), rl)
			})
		},
	}
}

// shell executes interactive commands against one gateway.
type shell struct {
	gw  gateway.Gateway
	out io.Writer
}

func (s *shell) run(ctx context.Context, rl *readline.Instance) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.printEvents(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	fmt.Fprint(s.out, shellHelp)
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}
		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// printEvents prints device events until ctx ends or the session closes.
func (s *shell) printEvents(ctx context.Context) {
	sub := s.gw.Subscribe()
	defer sub.Close()
	for ev := range sub.All(ctx) {
		fmt.Fprintf(s.out, "event: %s\n", ev)
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s), see help", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "help", "?":
		fmt.Fprint(s.out, shellHelp)
		return nil

	case "quit", "exit", "q":
		return errQuit

	case "ping":
		start := time.Now()
		if err := s.gw.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "pong in %s\n", time.Since(start).Round(time.Microsecond))
		return nil

	case "info":
		name, err := s.gw.Info(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, name)
		return nil

	case "login":
		if err := need(1); err != nil {
			return err
		}
		if err := s.gw.Authorize(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "password accepted")
		return nil

	case "relay":
		if err := need(2); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return runRelay(ctx, lio.NewRelay(s.gw, id), args[1], args[2:], s.out)

	case "status":
		if err := need(1); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		on, err := lio.NewRelay(s.gw, id).Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "relay %d: %s\n", id, onOff(on))
		return nil

	case "line":
		if err := need(1); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		sig, err := s.gw.LineSignal(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "line %d: %s\n", id, sig)
		return nil

	case "wait":
		if err := need(1); err != nil {
			return err
		}
		return s.wait(ctx, args)

	case "events":
		if err := need(2); err != nil {
			return err
		}
		kind, err := wire.ParseEventKind(args[0])
		if err != nil {
			return err
		}
		var enabled bool
		switch strings.ToLower(args[1]) {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("events: want on or off, got %q", args[1])
		}
		if err := s.gw.ConfigureEvent(ctx, kind, enabled); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s events %s\n", kind, onOff(enabled))
		return nil
	}

	return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
}

func (s *shell) wait(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	timeout := 30 * time.Second
	if len(args) > 1 {
		if timeout, err = time.ParseDuration(args[1]); err != nil {
			return fmt.Errorf("wait timeout: %w", err)
		}
	}

	in := lio.NewInputLine(s.gw, id)
	defer in.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sig, err := in.WaitSignal(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "line %d: %s\n", id, sig)
	return nil
}
