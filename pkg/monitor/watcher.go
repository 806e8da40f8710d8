// Package monitor watches the provider's model catalog and announces
// changes to a QQ group.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/a2bot/relay/pkg/debug"
	"github.com/a2bot/relay/pkg/observability"
	"github.com/a2bot/relay/pkg/onebot"
	"github.com/a2bot/relay/pkg/provider"
)

// runTimeout bounds a single watch run, covering both the catalog fetch
// and the group notification.
const runTimeout = 30 * time.Second

// DefaultSchedule checks the catalog once a minute.
const DefaultSchedule = "* * * * *"

// ModelLister is the slice of the provider client the watcher needs.
type ModelLister interface {
	ListModels(ctx context.Context) ([]provider.ModelEntry, error)
}

// Notifier delivers catalog change notices to a group.
type Notifier interface {
	SendGroupMsg(ctx context.Context, groupID int64, msg onebot.Message) error
}

// Config carries the watcher settings.
type Config struct {
	// Schedule is a five-field cron expression. Defaults to DefaultSchedule.
	Schedule string

	// GroupID receives change notifications. Required.
	GroupID int64

	Logger *slog.Logger
}

// Watcher polls the model catalog on a cron schedule and notifies the
// configured group when models appear or disappear. The previous catalog
// lives on the watcher itself, so independent watchers do not share state.
type Watcher struct {
	lister   ModelLister
	notifier Notifier
	schedule cron.Schedule
	spec     string
	groupID  int64
	logger   *slog.Logger

	mu          sync.Mutex
	known       []string
	initialized bool
	running     bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. The schedule must be a standard five-field cron
// expression and the group id must be set.
func New(lister ModelLister, notifier Notifier, cfg Config) (*Watcher, error) {
	if lister == nil {
		return nil, errors.New("monitor: lister is required")
	}
	if notifier == nil {
		return nil, errors.New("monitor: notifier is required")
	}
	if cfg.GroupID == 0 {
		return nil, errors.New("monitor: notification group is required")
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("monitor: parsing schedule %q: %w", spec, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		lister:   lister,
		notifier: notifier,
		schedule: schedule,
		spec:     spec,
		groupID:  cfg.GroupID,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Start launches the watch loop. The first run happens immediately and
// records the catalog without notifying; later runs follow the schedule.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("model watcher started", "schedule", w.spec, "group", w.groupID)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
		for {
			timer := time.NewTimer(time.Until(w.schedule.Next(time.Now())))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.stop:
				timer.Stop()
				return
			case <-timer.C:
				w.run(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight run to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	w.wg.Wait()
	w.logger.Info("model watcher stopped")
}

// run performs one poll. Fetch errors leave the known catalog untouched so
// the next successful run still sees the old baseline.
func (w *Watcher) run(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	outcome := "error"
	defer func() {
		observability.MonitorRunsTotal.WithLabelValues(outcome).Inc()
	}()

	entries, err := w.lister.ListModels(runCtx)
	if err != nil {
		w.logger.Error("model watcher: listing models failed", "error", err)
		return
	}

	current := make([]string, 0, len(entries))
	for _, m := range entries {
		current = append(current, m.ID)
	}
	sort.Strings(current)

	w.mu.Lock()
	if !w.initialized {
		w.known = current
		w.initialized = true
		w.mu.Unlock()
		w.logger.Info("model watcher initialized", "models", len(current))
		outcome = "initial"
		return
	}

	added, removed := diff(w.known, current)
	if len(added) == 0 && len(removed) == 0 {
		w.mu.Unlock()
		debug.Log("monitor", "catalog unchanged", "models", len(current))
		outcome = "unchanged"
		return
	}
	w.known = current
	w.mu.Unlock()

	notice := changeNotice(added, removed)
	if err := w.notifier.SendGroupMsg(runCtx, w.groupID, onebot.Text(notice)); err != nil {
		w.logger.Error("model watcher: sending notification failed",
			"group", w.groupID, "error", err)
		return
	}
	w.logger.Info("model catalog change notified",
		"added", len(added), "removed", len(removed))
	outcome = "changed"
}

// diff reports ids present only in current (added) and only in previous
// (removed). Both inputs arrive sorted, so the results are sorted too.
func diff(previous, current []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, id := range previous {
		prev[id] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
		if _, ok := prev[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range previous {
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func changeNotice(added, removed []string) string {
	var b strings.Builder
	b.WriteString("🚀 Model catalog changed\n")
	if len(added) > 0 {
		b.WriteString("\n+ Added:\n")
		b.WriteString(strings.Join(added, "\n"))
	}
	if len(removed) > 0 {
		b.WriteString("\n\n- Removed:\n")
		b.WriteString(strings.Join(removed, "\n"))
	}
	return b.String()
}
