// canfd-node runs one node of the CAN FD demo: pressing the user button sends
// a fixed frame, and frames from the other node toggle the LED and are
// printed on the console.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notnil/canfdnode/config"
)

const (
	_logLvlDef = zapcore.InfoLevel
)

func main() {
	logLvl := zap.LevelFlag("loglvl", _logLvlDef, "log level for zap logger")
	logFile := flag.String("logf", "", "path to an additional log file")
	configFile := flag.String("conf", "", "path to the configuration file (defaults when empty)")
	role := flag.String("role", "", "override the node role (node1|node2)")
	mode := flag.String("mode", "", "override the CAN mode (classic|fd)")
	sim := flag.Bool("sim", false, "run both nodes on an in-memory bus; stdin lines press the buttons")

	flag.Parse()

	logger, err := newLoggerConfig(*logFile, *logLvl).Build()
	if err != nil {
		log.Fatalf("build log configuration: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	sugar := logger.Sugar()
	slogger := slogFrom(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *sim {
		if err := runSim(ctx, slogger, os.Stdin, os.Stdout); err != nil {
			sugar.Fatalw("simulation stopped", "error", err)
		}
		return
	}

	conf := config.Default()
	if *configFile != "" {
		if conf, err = config.Load(*configFile); err != nil {
			sugar.Fatalw("load configuration", "error", err)
		}
	}
	if *role != "" {
		conf.Node.Role = *role
	}
	if *mode != "" {
		conf.Node.Mode = *mode
	}

	n, closer, err := startup(conf, sugar, slogger)
	if err != nil {
		// Start-up failures halt the node.
		sugar.Fatalw("start-up failed", "error", err)
	}
	defer closer()

	if err := n.Run(ctx); err != nil {
		closer()
		sugar.Fatalw("node stopped", "error", err)
	}
	sugar.Info("node stopped")
}
