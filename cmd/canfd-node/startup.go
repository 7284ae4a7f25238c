package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/notnil/canfdnode/board"
	"github.com/notnil/canfdnode/config"
	"github.com/notnil/canfdnode/console"
	"github.com/notnil/canfdnode/node"
)

// startup opens the GPIO lines, the console and the CAN channel, then prints
// the banner. The returned closer releases everything that was opened and is
// safe to call more than once.
func startup(conf config.Configuration, sugar *zap.SugaredLogger, slogger *slog.Logger) (*node.Node, func(), error) {
	var (
		closers []io.Closer
		once    sync.Once
	)
	closeAll := func() {
		once.Do(func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(); err != nil {
					sugar.Warnw("close", "error", err)
				}
			}
		})
	}
	fail := func(err error) (*node.Node, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	cfg, err := conf.NodeConfig()
	if err != nil {
		return fail(err)
	}

	btn, err := board.OpenPeriphButton(conf.Board.Button)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, btn)
	led, err := board.OpenPeriphLED(conf.Board.LED)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, led)

	con, err := openConsole(conf.Console)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, con)

	bus, err := openBus(conf, cfg, sugar, slogger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, bus)

	n, err := node.New(cfg, node.Peripherals{
		Bus:     bus,
		Button:  btn,
		LED:     led,
		Console: con,
		Logger:  slogger,
	})
	if err != nil {
		return fail(err)
	}
	if err := n.Banner(); err != nil {
		return fail(fmt.Errorf("console banner: %w", err))
	}
	sugar.Infow("node started",
		"role", cfg.Role.String(),
		"mode", cfg.Mode.String(),
		"interface", conf.InterfaceName(),
		"button", conf.Board.Button,
		"led", conf.Board.LED,
	)
	return n, closeAll, nil
}

func openConsole(c config.ConsoleConf) (*console.Console, error) {
	if c.Port == "" {
		return console.New(nopCloser{os.Stdout}), nil
	}
	return console.OpenSerial(c.Port, c.Baud)
}

// nopCloser keeps Console.Close from closing stdout.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
