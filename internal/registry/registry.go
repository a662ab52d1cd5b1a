// ABOUTME: Authoritative in-memory registry of agent records and lifecycle state.
// ABOUTME: Source of truth for which agent names exist and their last-known status.

package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrNotRegistered indicates an operation referenced an agent name that was
// never registered (or has been unregistered).
var ErrNotRegistered = errors.New("agent not registered")

// ErrFleetFull indicates the configured maximum number of registered agents
// has been reached.
var ErrFleetFull = errors.New("maximum number of agents reached")

// Status is an agent's lifecycle state.
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusOffline      Status = "offline"
	StatusOnline       Status = "online"
	StatusStopping     Status = "stopping"
)

// Coordinates is an agent's in-game position.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Stats holds monotonically-updated counters for an agent.
type Stats struct {
	TotalPlayTime  int64 `json:"totalPlayTime"`
	TasksCompleted int   `json:"tasksCompleted"`
	BlocksPlaced   int   `json:"blocksPlaced"`
	BlocksBroken   int   `json:"blocksBroken"`
}

// Snapshot is the last known game state for an agent, produced by a status
// reply from its live session. Stale whenever the agent is unreachable.
type Snapshot struct {
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	Health      float64     `json:"health"`
	MaxHealth   float64     `json:"maxHealth"`
	Hunger      float64     `json:"hunger"`
	Experience  int         `json:"experience"`
	GameMode    string      `json:"gameMode"`
	Dimension   string      `json:"dimension"`
	Biome       string      `json:"biome"`
	Coordinates Coordinates `json:"coordinates"`
	Stats       *Stats      `json:"stats,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Unavailable returns the snapshot used when an agent cannot be reached.
// Absence of a live session is an expected condition, not an error.
func Unavailable(name string) *Snapshot {
	return &Snapshot{Name: name, Status: "unavailable"}
}

// Record is the authoritative entry for a registered agent name. It outlives
// individual channel connections; a disconnect changes Status, never deletes
// the record.
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
	RegisteredAt  time.Time `json:"registeredAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Stats         Stats     `json:"stats"`
}

// Registry coordinates all agent records. All access goes through its
// methods; callers never see the internal map.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*Record
	maxAgents int
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Registry. maxAgents <= 0 disables the limit.
func New(maxAgents int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		records:   make(map[string]*Record),
		maxAgents: maxAgents,
		logger:    logger.With("component", "registry"),
		now:       time.Now,
	}
}

// Register idempotently creates a record for each unseen name with
// status=offline. Existing records are left untouched. Returns the names
// that were newly created, or ErrFleetFull if creating them would exceed
// the configured maximum.
func (r *Registry) Register(names []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var unseen []string
	for _, name := range names {
		if _, exists := r.records[name]; !exists {
			unseen = append(unseen, name)
		}
	}

	if r.maxAgents > 0 && len(r.records)+len(unseen) > r.maxAgents {
		return nil, ErrFleetFull
	}

	for _, name := range unseen {
		r.records[name] = &Record{
			Name:         name,
			Status:       StatusOffline,
			RegisteredAt: r.now(),
		}
	}

	if len(unseen) > 0 {
		r.logger.Info("agents registered", "names", unseen, "total", len(r.records))
	}
	return unseen, nil
}

// Login marks a registered agent as online and records its session id.
// The id is the caller's own session identifier and is not regenerated.
func (r *Registry) Login(name, liveID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return ErrNotRegistered
	}

	rec.Status = StatusOnline
	rec.LastHeartbeat = r.now()
	if liveID != "" {
		rec.ID = liveID
	}
	return nil
}

// Logout marks a registered agent as offline. The record is kept.
func (r *Registry) Logout(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return ErrNotRegistered
	}
	rec.Status = StatusOffline
	return nil
}

// SetStatus transitions a registered agent to the given status.
func (r *Registry) SetStatus(name string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return ErrNotRegistered
	}
	rec.Status = status
	return nil
}

// Touch updates the heartbeat timestamp for a registered agent.
func (r *Registry) Touch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[name]; ok {
		rec.LastHeartbeat = r.now()
	}
}

// MarkStale demotes online agents whose last heartbeat is older than maxAge
// to offline, returning the demoted names sorted.
func (r *Registry) MarkStale(maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	var stale []string
	for name, rec := range r.records {
		if rec.Status == StatusOnline && rec.LastHeartbeat.Before(cutoff) {
			rec.Status = StatusOffline
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		sort.Strings(stale)
		r.logger.Warn("agents marked offline after missed heartbeats", "names", stale)
	}
	return stale
}

// UpdateSnapshot stores the latest game snapshot for a registered agent and
// folds any stats it carries into the record's counters. Counters only move
// forward; a reply carrying smaller values is ignored.
func (r *Registry) UpdateSnapshot(name string, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return ErrNotRegistered
	}

	rec.Snapshot = snap
	rec.LastHeartbeat = r.now()
	if snap.Stats != nil {
		mergeStats(&rec.Stats, snap.Stats)
	}
	return nil
}

func mergeStats(dst *Stats, src *Stats) {
	if src.TotalPlayTime > dst.TotalPlayTime {
		dst.TotalPlayTime = src.TotalPlayTime
	}
	if src.TasksCompleted > dst.TasksCompleted {
		dst.TasksCompleted = src.TasksCompleted
	}
	if src.BlocksPlaced > dst.BlocksPlaced {
		dst.BlocksPlaced = src.BlocksPlaced
	}
	if src.BlocksBroken > dst.BlocksBroken {
		dst.BlocksBroken = src.BlocksBroken
	}
}

// Unregister removes the record entirely. Used by explicit administrative
// deregistration only; disconnects never call this.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[name]; !ok {
		return ErrNotRegistered
	}
	delete(r.records, name)
	r.logger.Info("agent unregistered", "name", name, "total", len(r.records))
	return nil
}

// Get returns a copy of the record for the given name.
func (r *Registry) Get(name string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return Record{}, ErrNotRegistered
	}
	return *rec, nil
}

// Exists reports whether the name has been registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.records[name]
	return ok
}

// List returns copies of all records sorted by name.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
