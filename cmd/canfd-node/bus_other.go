//go:build !linux

package main

import (
	"errors"
	"log/slog"

	"go.uber.org/zap"

	"github.com/notnil/canfdnode/canbus"
	"github.com/notnil/canfdnode/config"
	"github.com/notnil/canfdnode/node"
)

var errNoSocketCAN = errors.New("SocketCAN requires linux; use -sim")

func openBus(config.Configuration, node.Config, *zap.SugaredLogger, *slog.Logger) (canbus.Bus, error) {
	return nil, errNoSocketCAN
}
