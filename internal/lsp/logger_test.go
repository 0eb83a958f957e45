package lsp

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestLogCore(queueDepth int) *clientLogCore {
	return &clientLogCore{
		client: &fakeClient{},
		level:  zapcore.DebugLevel,
		encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:  "msg",
			EncodeLevel: zapcore.CapitalLevelEncoder,
			EncodeTime:  zapcore.ISO8601TimeEncoder,
		}),
		ctx:     context.Background(),
		queue:   make(chan logEntry, queueDepth),
		dropped: new(atomic.Uint64),
	}
}

// TestClientLogCoreSurfacesDroppedCount covers the buxn-ls-specific addition
// to the teacher's logger core: a burst of debounce-triggered runs logging
// faster than the client drains window/logMessage doesn't just silently
// drop entries once the queue fills — the drop count rides along on the
// next message that makes it through.
func TestClientLogCoreSurfacesDroppedCount(t *testing.T) {
	t.Parallel()

	core := newTestLogCore(2)

	require.NoError(t, core.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "run 1"}, nil))
	require.NoError(t, core.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "run 2"}, nil))
	require.NoError(t, core.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "run 3"}, nil))
	assert.Equal(t, uint64(1), core.dropped.Load(), "queue was full; the third entry should be counted, not blocked on")

	<-core.queue // drain one slot, as the run() goroutine would

	require.NoError(t, core.Write(zapcore.Entry{Level: zapcore.InfoLevel, Message: "run 4"}, nil))
	assert.Equal(t, uint64(0), core.dropped.Load(), "the drop count resets once a message gets through")

	<-core.queue // "run 2", queued before the drop
	entry := <-core.queue
	assert.True(t, strings.Contains(entry.message, "1 log lines dropped"), "message = %q", entry.message)
	assert.True(t, strings.Contains(entry.message, "run 4"))
}
