package monitor

import (
	"context"
	"fmt"
	"io"

	"github.com/maristed/tether/pkg/api"
	"github.com/maristed/tether/pkg/config"
	"github.com/maristed/tether/pkg/display"
	"github.com/maristed/tether/pkg/events"
	"github.com/maristed/tether/pkg/feed"
	"github.com/maristed/tether/pkg/logger"
	"github.com/maristed/tether/pkg/stream"
	"github.com/maristed/tether/pkg/workflow"
)

// Monitor is the follow mode: it wires the feed client, the workflow
// tracker, and the formatter together and writes the live transcript to
// out until the context is cancelled.
type Monitor struct {
	client    *stream.Client
	tracker   *workflow.Tracker
	api       *api.Client
	formatter *display.Formatter
	out       io.Writer
	plain     bool
	log       *logger.Logger
}

// New builds a monitor from the loaded configuration
func New(cfg *config.Config, out io.Writer) *Monitor {
	bus := events.NewBus()

	client := stream.New(cfg.Server.URL, bus,
		stream.WithBackoff(stream.Backoff{
			Initial: cfg.Stream.InitialBackoff,
			Max:     cfg.Stream.MaxBackoff,
		}),
		stream.WithHeartbeatTimeout(cfg.Stream.HeartbeatTimeout),
	)

	var trackerOpts []workflow.TrackerOption
	if cfg.Workflow.MaxGroups > 0 {
		trackerOpts = append(trackerOpts, workflow.WithMaxGroups(cfg.Workflow.MaxGroups))
	}
	tracker := workflow.NewTracker(bus, trackerOpts...)

	return &Monitor{
		client:    client,
		tracker:   tracker,
		api:       api.NewClient(cfg.Server.URL, cfg.Server.Timeout),
		formatter: display.NewFormatter(cfg.Display.Width, cfg.Display.Markdown, cfg.Display.ShowHidden),
		out:       out,
		plain:     !cfg.Display.Markdown,
		log:       logger.WithComponent("monitor"),
	}
}

// Run follows the session until ctx is cancelled. All printing happens
// on the feed goroutine, one frame at a time, so output never mixes the
// effects of two frames.
func (m *Monitor) Run(ctx context.Context) error {
	disposeData := m.client.OnData(func(update stream.DataUpdate) {
		for _, msg := range update.NewMessages {
			m.printMessage(msg)
		}
		// The tracker inspects the same delta stream the view consumes
		m.tracker.Ingest(update.NewMessages)
	})
	defer disposeData()

	disposeStatus := m.client.OnStatus(func(update stream.StatusUpdate) {
		m.println(m.formatter.Status(update))
	})
	defer disposeStatus()

	disposeGroups := m.tracker.Subscribe(func(update workflow.GroupsUpdate) {
		if update.Change.IsFull() {
			return // nothing rendered yet on the initial snapshot
		}
		for _, key := range update.Change.Keys() {
			if group, ok := update.Groups[key]; ok {
				m.println(m.formatter.Group(group))
			}
		}
	})
	defer disposeGroups()

	m.client.Start()
	defer m.client.Close()

	<-ctx.Done()
	m.log.Info("Follow mode stopped")
	return nil
}

// Backfill pages in history older than the live cursor and merges it
// through the same aggregation path the feed uses.
func (m *Monitor) Backfill(ctx context.Context, start, end int) error {
	msgs, err := m.api.Messages(ctx, start, end)
	if err != nil {
		return fmt.Errorf("backfilling messages: %w", err)
	}
	m.client.ApplyBackfill(msgs)
	return nil
}

// BackfillRecent prefetches the newest n transcript entries so the
// transcript is warm before the feed connects. The range is clamped to
// what the session actually holds.
func (m *Monitor) BackfillRecent(ctx context.Context, n int) error {
	st, err := m.api.State(ctx)
	if err != nil {
		return fmt.Errorf("fetching session state: %w", err)
	}
	start := st.MessageCount - n
	if start < 0 {
		start = 0
	}
	if start >= st.MessageCount {
		return nil
	}
	return m.Backfill(ctx, start, st.MessageCount)
}

func (m *Monitor) printMessage(msg feed.AgentMessage) {
	line := m.formatter.Message(msg)
	if line == "" {
		return
	}
	m.println(line)
}

func (m *Monitor) println(line string) {
	if m.plain {
		line = display.StripANSI(line)
	}
	fmt.Fprintln(m.out, line)
}
