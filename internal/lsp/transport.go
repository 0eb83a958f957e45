package lsp

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode is one of the four launch modes spec.md §6 defines.
type Mode string

const (
	ModeStdio  Mode = "stdio"
	ModeServer Mode = "server"
	ModeShim   Mode = "shim"
	ModeHybrid Mode = "hybrid"
)

// DefaultSocketPath is the default UNIX-domain socket path for server/shim/
// hybrid modes.
const DefaultSocketPath = "@buxn/ls"

// stdioReadWriteCloser pairs independent stdin/stdout streams into the
// single io.ReadWriteCloser jsonrpc2.NewStream expects, per the teacher's
// cmd/scaf-lsp/main.go readWriteCloser.
type stdioReadWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *stdioReadWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Run drives srv over the given transport mode until the connection (or,
// in server mode, the listener) closes, returning the error to report as
// the process's exit status.
func Run(ctx context.Context, logger *zap.Logger, srv *Server, mode Mode, socketPath string) error {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	switch mode {
	case ModeStdio, "":
		return runStream(ctx, logger, srv, &stdioReadWriteCloser{os.Stdin, os.Stdout})
	case ModeServer:
		return runServerMode(ctx, logger, srv, socketPath)
	case ModeShim:
		return runShim(ctx, socketPath)
	case ModeHybrid:
		return runHybrid(ctx, logger, srv, socketPath)
	default:
		return errors.New("lsp: unknown transport mode " + string(mode))
	}
}

func runStream(ctx context.Context, logger *zap.Logger, srv *Server, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)
	client := protocol.ClientDispatcher(conn, logger)

	// Replace the stderr-only startup logger with a dual sink now that a
	// client connection exists, per the teacher's cmd/scaf-lsp/main.go
	// two-stage logger bootstrap.
	dual := NewLogger(client, logger.Core(), zapcore.DebugLevel)

	srv.attach(client, conn.Close)
	srv.setLogger(dual)
	srv.resetConnState()

	conn.Go(ctx, srv.Handle)
	<-conn.Done()
	return conn.Err()
}

// runServerMode listens on a UNIX-domain socket and serves one connection
// at a time, per spec.md §6's "server" launch mode. A fresh Server's worth
// of connection state is reused across connections; the workspace/graph
// state is only established once Initialize runs on whichever connection
// is current.
func runServerMode(ctx context.Context, logger *zap.Logger, srv *Server, socketPath string) error {
	_ = os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if err := runStream(ctx, logger, srv, conn); err != nil {
			logger.Warn("lsp connection closed", zap.Error(err))
		}
	}
}

// runShim forwards this process's stdio to a long-lived server process
// already listening on socketPath, per spec.md §6's "shim" launch mode.
func runShim(ctx context.Context, socketPath string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(conn, os.Stdin)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		errc <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

// runHybrid shims to an already-running server on socketPath when one
// exists, and otherwise serves the connection itself over stdio, per
// spec.md §6's "hybrid" launch mode.
func runHybrid(ctx context.Context, logger *zap.Logger, srv *Server, socketPath string) error {
	if err := runShim(ctx, socketPath); err == nil {
		return nil
	}
	return runStream(ctx, logger, srv, &stdioReadWriteCloser{os.Stdin, os.Stdout})
}
