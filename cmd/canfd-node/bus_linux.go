//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/notnil/canfdnode/canbus"
	"github.com/notnil/canfdnode/config"
	"github.com/notnil/canfdnode/node"
)

// openBus configures the CAN interface when asked to and opens a raw socket
// on it, retrying while the link comes up.
func openBus(conf config.Configuration, cfg node.Config, sugar *zap.SugaredLogger, slogger *slog.Logger) (canbus.Bus, error) {
	name := conf.InterfaceName()
	if conf.Bus.Configure {
		if err := canbus.ConfigureInterface(name, conf.InterfaceOptions()); err != nil {
			return nil, fmt.Errorf("configure %s: %w", name, err)
		}
	}

	var bus canbus.Bus
	err := backoff.Retry(
		func() error {
			var err error
			bus, err = canbus.DialSocketCAN(name, cfg.Mode == node.FD)
			if err != nil {
				sugar.Errorw("open CAN interface", "interface", name, "error", err)
				return err
			}
			return nil
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), conf.Bus.OpenRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if conf.Bus.LogFrames {
		bus = canbus.NewLoggedBus(bus, slogger.With("interface", name), slog.LevelDebug, canbus.LogAll, nil)
	}
	return bus, nil
}
