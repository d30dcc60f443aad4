package log

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The logger is a package global; each test installs its own writer and
// restores nothing since every test starts by replacing it.

func TestLog_FormatsLevelCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	Info(CatInvert, "job completed", "job", "rigid/specimen1", "index", 2)

	line := buf.String()
	require.Contains(t, line, "[INFO]")
	require.Contains(t, line, "[invert]")
	require.Contains(t, line, "job completed")
	require.Contains(t, line, "job=rigid/specimen1")
	require.Contains(t, line, "index=2")
}

func TestLog_OddFieldCountGetsPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	Warn(CatBuild, "skipping pair", "stage")

	require.Contains(t, buf.String(), "stage=<missing>")
}

func TestLog_ErrorErrAppendsError(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	ErrorErr(CatEngine, "engine failed", context.DeadlineExceeded, "cmd", "elastix")

	line := buf.String()
	require.Contains(t, line, "[ERROR]")
	require.Contains(t, line, "error=context deadline exceeded")
}

func TestLog_MinLevelFiltersBelow(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelWarn)
	defer SetMinLevel(LevelDebug)

	Debug(CatCache, "cache hit", "key", "reg_metadata.yaml")
	Info(CatCache, "cache warm")
	Warn(CatCache, "cache cold")

	line := buf.String()
	require.NotContains(t, line, "cache hit")
	require.NotContains(t, line, "cache warm")
	require.Contains(t, line, "cache cold")
}

func TestLog_DisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	SetEnabled(false)
	defer SetEnabled(true)

	Error(CatLedger, "should not appear")

	require.Empty(t, buf.String())
}

func TestLog_SubscribeReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWithWriter(&buf)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := Subscribe(ctx)
	require.NotNil(t, entries)

	Info(CatApply, "stage applied", "stage", "affine")

	select {
	case entry := <-entries:
		require.Contains(t, entry.Payload, "stage applied")
		require.Contains(t, entry.Payload, "stage=affine")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for log entry")
	}
}
