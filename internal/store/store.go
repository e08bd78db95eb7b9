// Package store implements the persistent entity store: an embedded
// SQLite file of record with eager in-memory indexes and copy-on-write
// snapshots for readers.
//
// Writers are serialized behind a mutex; every mutation rebuilds the index
// snapshot and swaps it in atomically, so readers (the engine in particular)
// always observe a consistent entity set and never see a mid-calculation
// mutation.
package store

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/loader"
)

// Query filters entities. Zero-valued fields do not constrain.
type Query struct {
	Type         domain.EntityType
	ActiveOn     *time.Time // entity must be active on this date
	Tags         []string   // non-empty intersection required
	NameContains string     // case-insensitive substring
}

// key identifies an entity by (type, name).
type key struct {
	typ  domain.EntityType
	name string
}

// snapshot is an immutable view over the entity set with eager indexes:
// by type, sorted by start date, sorted by end date, and by tag.
type snapshot struct {
	all         []*domain.Entity
	byKey       map[key]*domain.Entity
	byType      map[domain.EntityType][]*domain.Entity
	byStartDate []*domain.Entity // ascending start_date
	byEndDate   []*domain.Entity // entities with an end_date, ascending
	openEnded   []*domain.Entity // entities without an end_date
	byTag       map[string][]*domain.Entity
}

// Store is the persistent, indexed entity store.
type Store struct {
	repo *Repository
	log  zerolog.Logger

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// New creates a store over the given database, loading any persisted
// entities into the index.
func New(db *database.DB, log zerolog.Logger) (*Store, error) {
	repo, err := NewRepository(db, log)
	if err != nil {
		return nil, err
	}

	s := &Store{
		repo: repo,
		log:  log.With().Str("component", "entity_store").Logger(),
	}

	entities, err := repo.LoadAll()
	if err != nil {
		return nil, err
	}
	s.snap.Store(buildSnapshot(entities))
	return s, nil
}

// NewMemory creates a store backed by an in-memory database. Used as the
// scratch store for scenario and Monte-Carlo runs.
func NewMemory(log zerolog.Logger) (*Store, error) {
	db, err := database.New(database.Config{
		Path:    database.MemoryPath,
		Profile: database.ProfileScratch,
		Name:    "scratch",
	})
	if err != nil {
		return nil, err
	}
	return New(db, log)
}

// buildSnapshot constructs all indexes from an entity slice. Entities are
// sorted by (type, name) for deterministic iteration.
func buildSnapshot(entities []*domain.Entity) *snapshot {
	all := append([]*domain.Entity(nil), entities...)
	sort.Slice(all, func(i, j int) bool {
		if all[i].Type != all[j].Type {
			return all[i].Type < all[j].Type
		}
		return all[i].Name < all[j].Name
	})

	snap := &snapshot{
		all:    all,
		byKey:  make(map[key]*domain.Entity, len(all)),
		byType: make(map[domain.EntityType][]*domain.Entity),
		byTag:  make(map[string][]*domain.Entity),
	}

	for _, e := range all {
		snap.byKey[key{typ: e.Type, name: e.Name}] = e
		snap.byType[e.Type] = append(snap.byType[e.Type], e)
		for _, tag := range e.Tags {
			snap.byTag[tag] = append(snap.byTag[tag], e)
		}
		if e.EndDate != nil {
			snap.byEndDate = append(snap.byEndDate, e)
		} else {
			snap.openEnded = append(snap.openEnded, e)
		}
	}

	snap.byStartDate = append([]*domain.Entity(nil), all...)
	sort.SliceStable(snap.byStartDate, func(i, j int) bool {
		return snap.byStartDate[i].StartDate.Before(snap.byStartDate[j].StartDate)
	})
	sort.SliceStable(snap.byEndDate, func(i, j int) bool {
		return snap.byEndDate[i].EndDate.Before(*snap.byEndDate[j].EndDate)
	})

	return snap
}

// Snapshot returns the current consistent entity view. The returned slice
// and entities must be treated as immutable; callers clone before mutating.
func (s *Store) Snapshot() []*domain.Entity {
	return s.snap.Load().all
}

// Count returns the number of stored entities.
func (s *Store) Count() int {
	return len(s.snap.Load().all)
}

// Add inserts an entity, replacing any existing (type, name) match.
func (s *Store) Add(e *domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Upsert(e); err != nil {
		return err
	}

	current := s.snap.Load()
	next := make([]*domain.Entity, 0, len(current.all)+1)
	k := key{typ: e.Type, name: e.Name}
	for _, existing := range current.all {
		if (key{typ: existing.Type, name: existing.Name}) == k {
			continue
		}
		next = append(next, existing)
	}
	next = append(next, e)
	s.snap.Store(buildSnapshot(next))
	return nil
}

// Update replaces an entity matched by (name, type); when no match exists it
// falls back to Add.
func (s *Store) Update(e *domain.Entity) error {
	return s.Add(e)
}

// Delete removes an entity by name. When typ is empty, all types with that
// name are removed. Returns NotFoundError when nothing matched.
func (s *Store) Delete(name string, typ domain.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		removed int64
		err     error
	)
	if typ == "" {
		removed, err = s.repo.DeleteByName(name)
	} else {
		removed, err = s.repo.Delete(typ, name)
	}
	if err != nil {
		return err
	}
	if removed == 0 {
		return &domain.NotFoundError{Kind: "entity", Name: name}
	}

	current := s.snap.Load()
	next := make([]*domain.Entity, 0, len(current.all))
	for _, existing := range current.all {
		if existing.Name == name && (typ == "" || existing.Type == typ) {
			continue
		}
		next = append(next, existing)
	}
	s.snap.Store(buildSnapshot(next))
	return nil
}

// SyncFromDir walks an entities directory, loads and validates every file,
// and atomically replaces the stored set. The previous set stays visible to
// readers until the swap.
func (s *Store) SyncFromDir(path string) error {
	entities, err := loader.LoadDir(path, s.log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ReplaceAll(entities); err != nil {
		return err
	}
	s.snap.Store(buildSnapshot(entities))

	s.log.Info().Int("entities", len(entities)).Str("path", path).Msg("synced entity store from directory")
	return nil
}

// ReplaceEntities atomically replaces the stored set with an already-loaded
// entity slice. Scratch stores for simulation runs are refilled through this.
func (s *Store) ReplaceEntities(entities []*domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.ReplaceAll(entities); err != nil {
		return err
	}
	s.snap.Store(buildSnapshot(entities))
	return nil
}

// SaveToDir writes every stored entity back to the canonical directory
// layout, the inverse of SyncFromDir.
func (s *Store) SaveToDir(path string) error {
	return loader.SaveDir(path, s.Snapshot())
}

// GetByName returns an entity by name. When typ is empty the first match in
// (type, name) order wins.
func (s *Store) GetByName(name string, typ domain.EntityType) (*domain.Entity, error) {
	snap := s.snap.Load()
	if typ != "" {
		if e, ok := snap.byKey[key{typ: typ, name: name}]; ok {
			return e, nil
		}
		return nil, &domain.NotFoundError{Kind: "entity", Name: name}
	}
	for _, e := range snap.all {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, &domain.NotFoundError{Kind: "entity", Name: name}
}

// GetAll returns all entities in deterministic (type, name) order.
func (s *Store) GetAll() []*domain.Entity {
	return s.Snapshot()
}

// GetByType returns entities of one type.
func (s *Store) GetByType(typ domain.EntityType) []*domain.Entity {
	return append([]*domain.Entity(nil), s.snap.Load().byType[typ]...)
}

// GetByTags returns entities whose tag set intersects the given tags.
func (s *Store) GetByTags(tags []string) []*domain.Entity {
	snap := s.snap.Load()
	seen := make(map[key]bool)
	var out []*domain.Entity
	for _, tag := range tags {
		for _, e := range snap.byTag[tag] {
			k := key{typ: e.Type, name: e.Name}
			if !seen[k] {
				seen[k] = true
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ActiveOn returns entities active on the given date, using the sorted
// start-date index: the start_date <= d prefix intersected with entities
// whose end_date is unset or >= d.
func (s *Store) ActiveOn(d time.Time) []*domain.Entity {
	snap := s.snap.Load()
	day := domain.Day(d)

	// Prefix of the start-date index with start_date <= d.
	idx := sort.Search(len(snap.byStartDate), func(i int) bool {
		return domain.Day(snap.byStartDate[i].StartDate).After(day)
	})

	out := make([]*domain.Entity, 0, idx)
	for _, e := range snap.byStartDate[:idx] {
		if e.EndDate == nil || !domain.Day(*e.EndDate).Before(day) {
			out = append(out, e)
		}
	}
	return out
}

// Query returns entities matching every set filter field.
func (s *Store) Query(q Query) []*domain.Entity {
	snap := s.snap.Load()

	var candidates []*domain.Entity
	if q.Type != "" {
		candidates = snap.byType[q.Type]
	} else {
		candidates = snap.all
	}

	var out []*domain.Entity
	needle := strings.ToLower(q.NameContains)
	for _, e := range candidates {
		if q.ActiveOn != nil && !e.IsActive(*q.ActiveOn) {
			continue
		}
		if len(q.Tags) > 0 && !e.HasAnyTag(q.Tags) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Name), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}
