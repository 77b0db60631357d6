package house

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
)

// stubRepo serves canned houses and counts loads. Only LoadHouse is
// exercised by the cache.
type stubRepo struct {
	loads map[int64]int
	murky bool // when set, every load fails
}

func newStubRepo() *stubRepo {
	return &stubRepo{loads: map[int64]int{}}
}

func (s *stubRepo) LoadHouse(_ context.Context, houseID int64) (*House, error) {
	if s.murky {
		return nil, fmt.Errorf("stub: load failure")
	}
	if houseID >= 100 {
		return nil, fmt.Errorf("%w: house %d", ErrHouseNotFound, houseID)
	}
	s.loads[houseID]++
	return NewHouse(houseID, fmt.Sprintf("House %d", houseID)), nil
}

func (s *stubRepo) CreateHouse(context.Context, string) (*House, error)      { return nil, nil }
func (s *stubRepo) CreateAlarm(context.Context, int64, *Alarm) error         { return nil }
func (s *stubRepo) InsertRoom(context.Context, int64, *Room) error           { return nil }
func (s *stubRepo) DeleteRoom(context.Context, int64, int64) error           { return nil }
func (s *stubRepo) InsertDevice(context.Context, int64, int64, Device) error { return nil }
func (s *stubRepo) DeleteDevice(context.Context, int64, int64, Device) error { return nil }
func (s *stubRepo) UpdateDevice(context.Context, int64, int64, Device) error { return nil }
func (s *stubRepo) UpdateAlarm(context.Context, int64, *Alarm) error         { return nil }

func newTestCache(repo Repository, maxHouses int, timeout time.Duration) *Cache {
	return NewCache(repo, CacheConfig{MaxHouses: maxHouses, LockTimeout: timeout}, logging.Default())
}

func TestCacheLoadsOnceAndMutatesInPlace(t *testing.T) {
	repo := newStubRepo()
	cache := newTestCache(repo, 8, time.Second)
	ctx := context.Background()

	err := cache.Do(ctx, 1, func(h *House) error {
		h.AddRoom(NewRoom(h.NextRoomID, "Kitchen"))
		h.NextRoomID++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	// Second access sees the mutation and does not reload.
	err = cache.Do(ctx, 1, func(h *House) error {
		if len(h.Rooms) != 1 {
			t.Errorf("mutation lost: rooms = %d", len(h.Rooms))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if repo.loads[1] != 1 {
		t.Errorf("loads = %d, want 1", repo.loads[1])
	}
}

func TestCacheUnknownHouse(t *testing.T) {
	cache := newTestCache(newStubRepo(), 8, time.Second)
	err := cache.Do(context.Background(), 404, func(*House) error { return nil })
	if !errors.Is(err, ErrHouseNotFound) {
		t.Fatalf("error = %v, want ErrHouseNotFound", err)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	repo := newStubRepo()
	cache := newTestCache(repo, 2, time.Second)
	ctx := context.Background()
	noop := func(*House) error { return nil }

	for _, id := range []int64{1, 2} {
		if err := cache.Do(ctx, id, noop); err != nil {
			t.Fatal(err)
		}
	}
	// Touch 1 so 2 becomes the eviction candidate.
	if err := cache.Do(ctx, 1, noop); err != nil {
		t.Fatal(err)
	}
	if err := cache.Do(ctx, 3, noop); err != nil {
		t.Fatal(err)
	}

	cached, err := cache.Contains(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("house 2 not evicted")
	}
	for _, id := range []int64{1, 3} {
		cached, err := cache.Contains(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !cached {
			t.Errorf("house %d evicted unexpectedly", id)
		}
	}

	// Re-accessing 2 reloads it from the store.
	if err := cache.Do(ctx, 2, noop); err != nil {
		t.Fatal(err)
	}
	if repo.loads[2] != 2 {
		t.Errorf("loads for house 2 = %d, want 2", repo.loads[2])
	}
}

func TestCacheBoundedWait(t *testing.T) {
	cache := newTestCache(newStubRepo(), 8, 50*time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		cache.Do(ctx, 1, func(*House) error { //nolint:errcheck // goroutine result not needed
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := cache.Do(ctx, 2, func(*House) error { return nil })
	close(release)
	if !errors.Is(err, ErrStateUnavailable) {
		t.Fatalf("error while lock held = %v, want ErrStateUnavailable", err)
	}
}

func TestCacheLoadFailureDoesNotInsert(t *testing.T) {
	repo := newStubRepo()
	repo.murky = true
	cache := newTestCache(repo, 8, time.Second)
	ctx := context.Background()

	if err := cache.Do(ctx, 1, func(*House) error { return nil }); err == nil {
		t.Fatal("expected load failure")
	}

	repo.murky = false
	if err := cache.Do(ctx, 1, func(*House) error { return nil }); err != nil {
		t.Fatalf("load after recovery: %v", err)
	}
	n, err := cache.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}
