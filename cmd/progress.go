package cmd

import (
	"context"
	"fmt"
	"io"

	"invertix/internal/pubsub"
)

// progressPrinter mirrors pipeline lifecycle events onto the console, one
// line per job or stage outcome.
type progressPrinter struct {
	done chan struct{}
}

// startProgressPrinter subscribes to the broker and prints events until
// the broker closes. wait blocks until the subscription drains.
func startProgressPrinter(ctx context.Context, events *pubsub.Broker[pubsub.Progress], w io.Writer) *progressPrinter {
	p := &progressPrinter{done: make(chan struct{})}
	sub := events.Subscribe(ctx)
	go func() {
		defer close(p.done)
		for ev := range sub {
			if line := progressLine(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
	return p
}

func (p *progressPrinter) wait() {
	<-p.done
}

// progressLine renders one event. Events that only matter to the debug log
// return "".
func progressLine(ev pubsub.Event[pubsub.Progress]) string {
	pr := ev.Payload
	pair := pr.Stage + "/" + pr.Volume
	count := ""
	if pr.Total > 0 {
		count = fmt.Sprintf(" (%d/%d)", pr.Index, pr.Total)
	}

	switch ev.Type {
	case pubsub.JobFinishedEvent:
		if pr.Err != nil {
			return fmt.Sprintf("failed %s%s: %v", pair, count, pr.Err)
		}
		return fmt.Sprintf("inverted %s%s", pair, count)
	case pubsub.JobSkippedEvent:
		return fmt.Sprintf("skipped %s%s", pair, count)
	case pubsub.StageAppliedEvent:
		if pr.Err != nil {
			return fmt.Sprintf("failed %s%s: %v", pair, count, pr.Err)
		}
		return fmt.Sprintf("applied %s%s", pair, count)
	case pubsub.StageSkippedEvent:
		return fmt.Sprintf("skipped %s%s", pair, count)
	default:
		return ""
	}
}
