package workflow

import (
	"sort"
	"sync"
	"time"

	"github.com/maristed/tether/pkg/events"
	"github.com/maristed/tether/pkg/feed"
	"github.com/maristed/tether/pkg/logger"
)

// EventGroup collects the workflow events observed for one
// branch/commit pair, in arrival order.
type EventGroup struct {
	Branch      string
	CommitHash  string
	Events      []feed.AgentMessage
	LastUpdated time.Time
}

// Key returns the composite group key "branch:commitHash"
func (g *EventGroup) Key() string {
	return GroupKey(g.Branch, g.CommitHash)
}

// GroupKey builds the composite key used to bucket workflow events
func GroupKey(branch, commitHash string) string {
	return branch + ":" + commitHash
}

// Change is the tagged change set of a groups notification: either the
// whole map should be treated as changed (initial subscribe, replay) or
// exactly the listed keys changed.
type Change struct {
	full bool
	keys []string
}

// FullChange marks every group as changed
func FullChange() Change {
	return Change{full: true}
}

// DeltaChange marks exactly the given keys as changed
func DeltaChange(keys ...string) Change {
	return Change{keys: keys}
}

// IsFull reports whether the whole map should be re-derived
func (c Change) IsFull() bool {
	return c.full
}

// Keys returns the changed keys of a delta change; nil for a full change
func (c Change) Keys() []string {
	return c.keys
}

// GroupsUpdate is the payload of an EventGroupsUpdated notification: a
// snapshot of every group plus the change set for this ingestion.
type GroupsUpdate struct {
	Groups map[string]EventGroup
	Change Change
}

const source = "workflow_tracker"

// Tracker classifies workflow events from the message stream into
// branch/commit-scoped groups and republishes a minimal changed-key set
// so consumers re-derive only affected groups. Construct one per
// application (and per test) and share it; there is no package-level
// instance.
type Tracker struct {
	mu        sync.RWMutex
	groups    map[string]*EventGroup
	maxGroups int
	bus       *events.Bus
	log       *logger.Logger
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithMaxGroups caps retained groups: when an ingestion pushes the
// count past n, the groups with the oldest LastUpdated are evicted
// whole. Zero keeps every group for the session lifetime.
func WithMaxGroups(n int) TrackerOption {
	return func(t *Tracker) { t.maxGroups = n }
}

// NewTracker creates a tracker publishing on bus
func NewTracker(bus *events.Bus, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		groups: make(map[string]*EventGroup),
		bus:    bus,
		log:    logger.WithComponent(source),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ingest inspects a batch of message deltas, appends the qualifying
// ones to their groups, and publishes one notification naming exactly
// the keys that changed. Batches with no qualifying event publish
// nothing.
func (t *Tracker) Ingest(msgs []feed.AgentMessage) {
	t.mu.Lock()

	changed := make([]string, 0, 2)
	for _, msg := range msgs {
		if !Qualifies(msg) {
			continue
		}
		key := GroupKey(msg.Workflow.Branch, msg.Workflow.CommitHash)
		group, ok := t.groups[key]
		if !ok {
			group = &EventGroup{
				Branch:     msg.Workflow.Branch,
				CommitHash: msg.Workflow.CommitHash,
			}
			t.groups[key] = group
			t.log.Debug("Workflow group created", "key", key)
		}
		group.Events = append(group.Events, msg)
		group.LastUpdated = eventTime(msg)
		if !contains(changed, key) {
			changed = append(changed, key)
		}
	}

	if len(changed) == 0 {
		t.mu.Unlock()
		return
	}

	for _, key := range t.evictLocked() {
		if !contains(changed, key) {
			changed = append(changed, key)
		}
	}
	update := GroupsUpdate{
		Groups: t.snapshotLocked(),
		Change: DeltaChange(changed...),
	}
	t.mu.Unlock()

	t.bus.Publish(events.EventGroupsUpdated, update, source)
}

// Groups returns a deep snapshot of the current group map; mutating it
// never touches the tracker's own state.
func (t *Tracker) Groups() map[string]EventGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Subscribe registers a consumer for groups notifications. The consumer
// immediately receives the current snapshot as a full change, then one
// delta per ingestion that changed anything. The returned disposer
// fully detaches the consumer, including against a dispatch in flight.
func (t *Tracker) Subscribe(fn func(GroupsUpdate)) events.Disposer {
	disposer := t.bus.Subscribe(events.EventGroupsUpdated, func(e events.Event) {
		if update, ok := e.Payload.(GroupsUpdate); ok {
			fn(update)
		}
	})

	fn(GroupsUpdate{Groups: t.Groups(), Change: FullChange()})
	return disposer
}

// Qualifies reports whether a message feeds the tracker: an external
// message whose workflow payload names both a branch and a commit.
func Qualifies(msg feed.AgentMessage) bool {
	return msg.Type == feed.MessageTypeExternal &&
		msg.Workflow != nil &&
		msg.Workflow.Branch != "" &&
		msg.Workflow.CommitHash != ""
}

// snapshotLocked deep-copies the group map; caller holds the lock
func (t *Tracker) snapshotLocked() map[string]EventGroup {
	snapshot := make(map[string]EventGroup, len(t.groups))
	for key, group := range t.groups {
		copied := *group
		copied.Events = append([]feed.AgentMessage(nil), group.Events...)
		snapshot[key] = copied
	}
	return snapshot
}

// evictLocked drops the least recently updated groups past the cap and
// returns their keys so consumers learn they changed. Caller holds the
// lock.
func (t *Tracker) evictLocked() []string {
	if t.maxGroups <= 0 || len(t.groups) <= t.maxGroups {
		return nil
	}

	keys := make([]string, 0, len(t.groups))
	for key := range t.groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return t.groups[keys[i]].LastUpdated.Before(t.groups[keys[j]].LastUpdated)
	})

	evicted := keys[:len(keys)-t.maxGroups]
	for _, key := range evicted {
		delete(t.groups, key)
		t.log.Debug("Workflow group evicted", "key", key)
	}
	return evicted
}

// eventTime prefers the workflow run's own update time, falling back to
// the message timestamp and then to the wall clock.
func eventTime(msg feed.AgentMessage) time.Time {
	if msg.Workflow != nil && !msg.Workflow.UpdatedAt.IsZero() {
		return msg.Workflow.UpdatedAt
	}
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	return time.Now()
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
