package log

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLogBufferWraps(t *testing.T) {
	t.Parallel()

	b := NewHTTPLogBuffer(3)
	assert.Empty(t, b.Entries())

	for i := 0; i < 5; i++ {
		b.Add(HTTPLogEntry{Status: 200 + i})
	}

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []int{202, 203, 204}, []int{entries[0].Status, entries[1].Status, entries[2].Status})
}

func TestHTTPLogBufferPartial(t *testing.T) {
	t.Parallel()

	b := NewHTTPLogBuffer(4)
	b.Add(HTTPLogEntry{Path: "/a"})
	b.Add(HTTPLogEntry{Path: "/b"})

	entries := b.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/a", entries[0].Path)
	assert.Equal(t, "/b", entries[1].Path)
}

func TestLogHTTPRequest(t *testing.T) {
	require.NoError(t, Init(false))
	defer Sync()

	before := len(GetHTTPLogBuffer().Entries())
	LogHTTPRequest("GET", "/api/runs", 200, 15*time.Millisecond, 42, "127.0.0.1", nil)

	entries := GetHTTPLogBuffer().Entries()
	require.Len(t, entries, before+1)
	last := entries[len(entries)-1]
	assert.Equal(t, "/api/runs", last.Path)
	assert.EqualValues(t, 15, last.DurationMS)
	assert.Empty(t, last.Error)
}

func TestNamedLogger(t *testing.T) {
	require.NotNil(t, Named("engine"))
	require.NotNil(t, GetSugaredLogger())
}

func TestFallbackLoggerConcurrentFirstUse(t *testing.T) {
	baseLogger, log = nil, nil
	fallbackOnce = sync.Once{}

	var wg sync.WaitGroup
	loggers := make([]interface{}, 16)
	for i := range loggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Debugw("first use", "goroutine", i)
			loggers[i] = GetZapLogger()
		}()
	}
	wg.Wait()

	require.NotNil(t, loggers[0])
	for _, l := range loggers[1:] {
		assert.Same(t, loggers[0], l)
	}
}
