package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"invertix/internal/log"
	"invertix/internal/pubsub"
	"invertix/internal/watcher"
)

// run executes the binary, capturing stderr for error reporting. On
// cancellation the subprocess is killed and the context error is returned
// so callers can tell interruption from engine failure.
func run(ctx context.Context, binary string, args []string) error {
	start := time.Now()
	cmdline := binary + " " + strings.Join(args, " ")
	log.Debug(log.CatEngine, "engine starting", "cmd", cmdline)

	//nolint:gosec // G204: binary comes from tool config, args from tree discovery
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			log.Warn(log.CatEngine, "engine interrupted", "cmd", cmdline)
			return fmt.Errorf("%s interrupted: %w", binary, ctx.Err())
		}
		if stderr.Len() > 0 {
			err = fmt.Errorf("%s failed: %s", binary, strings.TrimSpace(stderr.String()))
		} else {
			err = fmt.Errorf("%s failed: %w", binary, err)
		}
		log.Error(log.CatEngine, "engine failed", "cmd", cmdline, "error", err)
		return err
	}

	log.Debug(log.CatEngine, "engine finished", "cmd", cmdline, "duration", time.Since(start))
	return nil
}

// watchActivity starts a debounced watcher on the engine's output directory
// and republishes file activity as heartbeat events until the returned stop
// function runs. Heartbeats are best effort: watch failures only log.
func watchActivity(opts Options, dir string) (stop func()) {
	if !opts.Watch || opts.Events == nil {
		return func() {}
	}

	w, err := watcher.New(watcher.DefaultConfig(dir))
	if err != nil {
		log.Warn(log.CatWatch, "engine watch unavailable", "dir", dir, "error", err)
		return func() {}
	}

	activity, err := w.Start()
	if err != nil {
		log.Warn(log.CatWatch, "engine watch unavailable", "dir", dir, "error", err)
		_ = w.Stop()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case _, ok := <-activity:
				if !ok {
					return
				}
				opts.Events.Publish(pubsub.EngineActiveEvent, pubsub.Progress{Detail: dir})
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Stop()
	}
}
