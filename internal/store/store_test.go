package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/domain"
)

func memoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory(zerolog.Nop())
	require.NoError(t, err)
	return s
}

func storeEntity(t *testing.T, raw map[string]any) *domain.Entity {
	t.Helper()
	e, err := domain.New(raw)
	require.NoError(t, err)
	return e
}

func TestStore_AddAndGet(t *testing.T) {
	s := memoryStore(t)

	e := storeEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01",
		"salary": 120000.0, "tags": []any{"engineering"},
	})
	require.NoError(t, s.Add(e))
	assert.Equal(t, 1, s.Count())

	got, err := s.GetByName("alice", domain.TypeEmployee)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	// Untyped lookup falls back to the first match.
	got, err = s.GetByName("alice", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeEmployee, got.Type)

	_, err = s.GetByName("nobody", domain.TypeEmployee)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_AddReplacesSameKey(t *testing.T) {
	s := memoryStore(t)

	first := storeEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 100000.0,
	})
	require.NoError(t, s.Add(first))

	second := storeEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 140000.0,
	})
	require.NoError(t, s.Add(second))

	assert.Equal(t, 1, s.Count())
	got, err := s.GetByName("alice", domain.TypeEmployee)
	require.NoError(t, err)
	salary, ok := got.Float("salary")
	require.True(t, ok)
	assert.InDelta(t, 140000.0, salary, 1e-9)
}

func TestStore_Delete(t *testing.T) {
	s := memoryStore(t)
	require.NoError(t, s.Add(storeEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})))

	require.NoError(t, s.Delete("alice", domain.TypeEmployee))
	assert.Zero(t, s.Count())

	var notFound *domain.NotFoundError
	err := s.Delete("alice", domain.TypeEmployee)
	require.ErrorAs(t, err, &notFound)
}

func TestStore_QueriesAndIndexes(t *testing.T) {
	s := memoryStore(t)
	seed := []map[string]any{
		{
			"type": "employee", "name": "alice", "start_date": "2025-01-01",
			"salary": 120000.0, "tags": []any{"engineering"},
		},
		{
			"type": "employee", "name": "bob", "start_date": "2025-06-01",
			"end_date": "2025-09-30", "salary": 90000.0, "tags": []any{"sales"},
		},
		{
			"type": "project", "name": "prototype", "start_date": "2025-02-01",
			"total_budget": 60000.0, "tags": []any{"engineering", "hardware"},
		},
	}
	for _, raw := range seed {
		require.NoError(t, s.Add(storeEntity(t, raw)))
	}

	byType := s.GetByType(domain.TypeEmployee)
	require.Len(t, byType, 2)
	assert.Equal(t, "alice", byType[0].Name)

	tagged := s.GetByTags([]string{"engineering"})
	require.Len(t, tagged, 2)

	active := s.ActiveOn(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, active, 2) // alice and prototype; bob starts in June

	// Bob's last active day.
	active = s.ActiveOn(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC))
	assert.Len(t, active, 3)
	active = s.ActiveOn(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.Len(t, active, 2)

	activeOn := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	results := s.Query(Query{Type: domain.TypeEmployee, ActiveOn: &activeOn, Tags: []string{"sales"}})
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].Name)

	results = s.Query(Query{NameContains: "PROTO"})
	require.Len(t, results, 1)
	assert.Equal(t, "prototype", results[0].Name)
}

func TestStore_ReplaceEntities(t *testing.T) {
	s := memoryStore(t)
	require.NoError(t, s.Add(storeEntity(t, map[string]any{
		"type": "employee", "name": "alice", "start_date": "2025-01-01", "salary": 120000.0,
	})))

	replacement := []*domain.Entity{
		storeEntity(t, map[string]any{
			"type": "employee", "name": "carol", "start_date": "2025-03-01", "salary": 110000.0,
		}),
		storeEntity(t, map[string]any{
			"type": "sale", "name": "big-order", "start_date": "2025-05-01", "amount": 25000.0,
		}),
	}
	require.NoError(t, s.ReplaceEntities(replacement))

	assert.Equal(t, 2, s.Count())
	_, err := s.GetByName("alice", domain.TypeEmployee)
	assert.Error(t, err)
	_, err = s.GetByName("carol", domain.TypeEmployee)
	assert.NoError(t, err)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	s := memoryStore(t)
	require.NoError(t, s.Add(storeEntity(t, map[string]any{
		"type": "equipment", "name": "laser-cutter", "start_date": "2025-01-01",
		"cost": 36000.0, "purchase_date": "2025-02-01", "depreciation_years": 3.0,
	})))

	// Reload through the repository to exercise the msgpack round trip.
	entities, err := s.repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, entities, 1)

	got := entities[0]
	assert.Equal(t, domain.TypeEquipment, got.Type)
	cost, ok := got.Float("cost")
	require.True(t, ok)
	assert.InDelta(t, 36000.0, cost, 1e-9)
	purchase, ok := got.Date("purchase_date")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), domain.Day(purchase))
}
