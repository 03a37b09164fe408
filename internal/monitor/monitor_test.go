package monitor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TransportDebuger/filterservice/internal/logging"
)

type stubLister struct {
	mu    sync.Mutex
	files []string
	err   error
}

func (s *stubLister) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out, nil
}

func (s *stubLister) set(files ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
}

func TestPollModeEmitsCreatedForNewEntries(t *testing.T) {
	lister := &stubLister{files: []string{"a.xml"}}
	events := make(chan Event, 8)

	m := New("/remote", 20*time.Millisecond, lister, logging.New(), func(e Event) { events <- e })
	m.Start()
	defer m.Stop()

	select {
	case ev := <-events:
		assert.Equal(t, Created, ev.Kind)
		assert.Equal(t, "a.xml", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("expected a created event for the pre-existing entry on first listing")
	}

	lister.set("a.xml", "b.xml")
	select {
	case ev := <-events:
		assert.Equal(t, Created, ev.Kind)
		assert.Equal(t, "b.xml", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("expected a created event for the new entry")
	}
}

func TestPollModeDoesNotReemitKnownEntries(t *testing.T) {
	lister := &stubLister{files: []string{"a.xml"}}
	var count int
	var mu sync.Mutex
	m := New("/remote", 15*time.Millisecond, lister, logging.New(), func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	m.Start()
	time.Sleep(150 * time.Millisecond)
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "the same entry must only be reported once")
}

func TestStartStopIdempotent(t *testing.T) {
	lister := &stubLister{}
	m := New("/remote", 20*time.Millisecond, lister, logging.New(), func(Event) {})
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}

func TestPollModeSurvivesTransientListError(t *testing.T) {
	lister := &stubLister{files: []string{"a.xml"}, err: fmt.Errorf("boom")}
	events := make(chan Event, 4)
	m := New("/remote", 15*time.Millisecond, lister, logging.New(), func(e Event) { events <- e })
	m.Start()
	defer m.Stop()

	time.Sleep(60 * time.Millisecond)
	select {
	case <-events:
		t.Fatal("no events expected while listing fails")
	default:
	}
}
