package lsp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logQueueDepth bounds the async window/logMessage queue. A debounced
// analysis run (spec.md §4.6) logs a handful of lines per firing; this
// covers several back-to-back firings arriving faster than the client
// drains them without growing unbounded.
const logQueueDepth = 100

// clientLogCore is a zapcore.Core that forwards log entries to the LSP
// client via window/logMessage, so they surface in the editor's own log
// viewer rather than only on this process's stderr.
//
// Unlike a plain forwarding core, a full queue doesn't just drop silently:
// dropped entries are counted, and the count is folded into the next
// message that does get through, so a burst of debounce-triggered runs
// logging faster than the client drains them doesn't erase evidence that
// something was skipped.
type clientLogCore struct {
	client protocol.Client
	level  zapcore.Level

	encoder zapcore.Encoder
	fields  []zapcore.Field

	mu        sync.Mutex
	ctx       context.Context
	cancelCtx context.CancelFunc

	queue   chan logEntry
	dropped *atomic.Uint64
}

type logEntry struct {
	msgType protocol.MessageType
	message string
}

// NewLogger builds a zap logger that tees to both the LSP client's
// window/logMessage and fallbackCore (typically stderr or a log file).
func NewLogger(client protocol.Client, fallbackCore zapcore.Core, level zapcore.Level) *zap.Logger {
	ctx, cancel := context.WithCancel(context.Background())

	core := &clientLogCore{
		client: client,
		level:  level,
		encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:     "msg",
			NameKey:        "logger",
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}),
		ctx:       ctx,
		cancelCtx: cancel,
		queue:     make(chan logEntry, logQueueDepth),
		dropped:   new(atomic.Uint64),
	}

	go core.run()

	return zap.New(zapcore.NewTee(core, fallbackCore))
}

func (c *clientLogCore) run() {
	for {
		select {
		case entry := <-c.queue:
			_ = c.client.LogMessage(c.ctx, &protocol.LogMessageParams{
				Type:    entry.msgType,
				Message: entry.message,
			})
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *clientLogCore) Enabled(level zapcore.Level) bool { return level >= c.level }

func (c *clientLogCore) With(fields []zapcore.Field) zapcore.Core {
	return &clientLogCore{
		client:    c.client,
		level:     c.level,
		encoder:   c.encoder.Clone(),
		fields:    append(append([]zapcore.Field{}, c.fields...), fields...),
		ctx:       c.ctx,
		cancelCtx: c.cancelCtx,
		queue:     c.queue,
		dropped:   c.dropped,
	}
}

func (c *clientLogCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *clientLogCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, err := c.encoder.EncodeEntry(entry, append(c.fields, fields...))
	if err != nil {
		return err
	}
	message := strings.TrimSpace(buf.String())
	buf.Free()

	if n := c.dropped.Load(); n > 0 {
		message = fmt.Sprintf("(%d log lines dropped) %s", n, message)
	}

	select {
	case c.queue <- logEntry{msgType: messageTypeFor(entry.Level), message: message}:
		c.dropped.Store(0)
	default:
		// Queue full; count the drop instead of blocking the logging call
		// site, and surface it on the next message that does get through.
		c.dropped.Add(1)
	}

	return nil
}

func (c *clientLogCore) Sync() error { return nil }

func messageTypeFor(level zapcore.Level) protocol.MessageType {
	switch level {
	case zapcore.DebugLevel:
		return protocol.MessageTypeLog
	case zapcore.InfoLevel:
		return protocol.MessageTypeInfo
	case zapcore.WarnLevel:
		return protocol.MessageTypeWarning
	default:
		return protocol.MessageTypeError
	}
}
