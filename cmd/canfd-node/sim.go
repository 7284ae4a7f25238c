package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/notnil/canfdnode/board"
	"github.com/notnil/canfdnode/canbus"
	"github.com/notnil/canfdnode/console"
	"github.com/notnil/canfdnode/node"
)

// runSim runs node 1 and node 2 on an in-memory bus sharing one console.
// Every line read from in presses a button: "2" presses node 2's, anything
// else node 1's. It returns when ctx is cancelled or a node fails.
func runSim(ctx context.Context, slogger *slog.Logger, in io.Reader, out io.Writer) error {
	lb := canbus.NewLoopbackBus()
	defer lb.Close()

	con := console.New(nopCloser{out})
	defer con.Close()

	if err := con.Banner("CANFD example", "Simulated CAN FD Node-1 and Node-2"); err != nil {
		return err
	}

	buttons := make(map[node.Role]*board.SimButton)
	g, gctx := errgroup.WithContext(ctx)
	for _, role := range []node.Role{node.Node1, node.Node2} {
		cfg := node.DefaultConfig()
		cfg.Role = role
		btn := board.NewSimButton()
		buttons[role] = btn
		logger := slogger.With("sim", role.String())
		n, err := node.New(cfg, node.Peripherals{
			Bus:     canbus.NewLoggedBus(lb.Open(), logger, slog.LevelDebug, canbus.LogAll, nil),
			Button:  btn,
			LED:     board.NewSimLED(),
			Console: con,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("sim %s: %w", role, err)
		}
		g.Go(func() error { return n.Run(gctx) })
	}

	// The scanner blocks in Read, so it is left out of the group.
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			role := node.Node1
			if strings.TrimSpace(sc.Text()) == "2" {
				role = node.Node2
			}
			if !buttons[role].Press() {
				slogger.Warn("button press lost", "sim", role.String())
			}
		}
	}()

	return g.Wait()
}
