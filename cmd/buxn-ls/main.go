// Command buxn-ls is a Language Server Protocol server for Uxn assembly.
package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/viant/afs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bullno1/buxn-ls/internal/assembler"
	"github.com/bullno1/buxn-ls/internal/lsp"
)

func main() {
	cmd := &cli.Command{
		Name:  "buxn-ls",
		Usage: "Language Server Protocol server for Uxn assembly",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Transport mode: stdio, server, shim, hybrid",
				Value: string(lsp.ModeStdio),
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "UNIX-domain socket path for server/shim/hybrid modes",
				Value: lsp.DefaultSocketPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "logfile",
				Usage: "Log file path (in addition to LSP window/logMessage)",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := zapcore.InfoLevel
	if cmd.Bool("debug") {
		level = zapcore.DebugLevel
	}

	startupLogger, err := zap.NewDevelopment(zap.IncreaseLevel(level))
	if err != nil {
		return err
	}

	mode := lsp.Mode(cmd.String("mode"))
	socketPath := cmd.String("socket")
	logfile := cmd.String("logfile")

	if logfile != "" {
		if core, err := fileCore(logfile, level); err != nil {
			startupLogger.Warn("failed to open logfile, falling back to stderr", zap.Error(err))
		} else {
			startupLogger = zap.New(core)
		}
	}

	startupLogger.Info("starting buxn-ls",
		zap.String("mode", string(mode)),
		zap.String("socket", socketPath),
		zap.Bool("debug", cmd.Bool("debug")))

	// The real Uxn assembler is an out-of-scope external collaborator
	// (spec.md §1); buxn-ls is wired against the no-op Mock until a
	// concrete assembler front-end is plugged in via internal/assembler.
	asm := &assembler.Mock{OK: true}
	disk := afs.New()

	srv := lsp.New(startupLogger, asm, disk)

	err = lsp.Run(ctx, startupLogger, srv, mode, socketPath)
	if err != nil {
		if errors.Is(err, io.EOF) {
			startupLogger.Info("client disconnected")
			return nil
		}
		if err.Error() == "closed" {
			startupLogger.Info("connection closed")
			return nil
		}
		startupLogger.Error("server error", zap.Error(err))
		return err
	}

	return nil
}

func fileCore(path string, level zapcore.Level) (zapcore.Core, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(file),
		level,
	), nil
}
