package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
	"github.com/hallfield/homehub-core/internal/session"
)

// fakeSender records delivered messages and can be set to fail.
type fakeSender struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("fake: send failed")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func newTestHub(t *testing.T) (*Hub, *session.Registry) {
	t.Helper()
	sessions := session.NewRegistry(time.Second)
	return New(sessions, logging.Default()), sessions
}

func joinSession(t *testing.T, sessions *session.Registry, h *Hub, id string, houseID int64) *fakeSender {
	t.Helper()
	ctx := context.Background()
	if err := sessions.Create(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := sessions.Update(ctx, id, func(s *session.Session) { s.HouseID = houseID }); err != nil {
		t.Fatal(err)
	}
	sender := &fakeSender{}
	h.Register(id, sender)
	return sender
}

func TestPublishReachesHouseAudienceOnly(t *testing.T) {
	h, sessions := newTestHub(t)
	inHouse1 := joinSession(t, sessions, h, "a", 1)
	alsoHouse1 := joinSession(t, sessions, h, "b", 1)
	inHouse2 := joinSession(t, sessions, h, "c", 2)

	msg := map[string]any{"type": "lamp_update", "device_id": 1}
	if err := h.Publish(context.Background(), 1, msg, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if inHouse1.count() != 1 || alsoHouse1.count() != 1 {
		t.Errorf("house 1 deliveries = %d, %d, want 1, 1", inHouse1.count(), alsoHouse1.count())
	}
	if inHouse2.count() != 0 {
		t.Errorf("house 2 received %d messages, want 0", inHouse2.count())
	}

	var decoded map[string]any
	if err := json.Unmarshal(inHouse1.messages[0], &decoded); err != nil {
		t.Fatalf("broadcast not valid JSON: %v", err)
	}
	if decoded["type"] != "lamp_update" {
		t.Errorf("type = %v", decoded["type"])
	}
}

func TestPublishExcludesOriginator(t *testing.T) {
	h, sessions := newTestHub(t)
	origin := joinSession(t, sessions, h, "origin", 1)
	other := joinSession(t, sessions, h, "other", 1)

	if err := h.Publish(context.Background(), 1, map[string]any{"type": "x"}, "origin"); err != nil {
		t.Fatal(err)
	}
	if origin.count() != 0 {
		t.Error("originator received its own broadcast")
	}
	if other.count() != 1 {
		t.Errorf("other deliveries = %d, want 1", other.count())
	}
}

func TestPublishIsolatesFailedDelivery(t *testing.T) {
	h, sessions := newTestHub(t)
	broken := joinSession(t, sessions, h, "broken", 1)
	broken.fail = true
	healthy := joinSession(t, sessions, h, "healthy", 1)

	if err := h.Publish(context.Background(), 1, map[string]any{"type": "x"}, ""); err != nil {
		t.Fatalf("Publish must not fail on one bad client: %v", err)
	}
	if healthy.count() != 1 {
		t.Errorf("healthy deliveries = %d, want 1", healthy.count())
	}
}

func TestPublishSkipsUnregisteredSessions(t *testing.T) {
	h, sessions := newTestHub(t)
	stays := joinSession(t, sessions, h, "stays", 1)
	joinSession(t, sessions, h, "leaves", 1)
	h.Unregister("leaves")

	if err := h.Publish(context.Background(), 1, map[string]any{"type": "x"}, ""); err != nil {
		t.Fatal(err)
	}
	if stays.count() != 1 {
		t.Errorf("deliveries = %d, want 1", stays.count())
	}
}
