package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/timelapse/internal/models"
)

const sceneID = "LC81910562013110LGN01"

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "run.started", Data: map[string]string{"year": "2013"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: run.started") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"year":"2013"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSceneEvent_SummaryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event for a year should trigger year.updated.
	b.PublishSceneEvent(sceneID, 2013, models.StatusDownloaded)
	// Second event immediately should NOT trigger another one for the same year.
	b.PublishSceneEvent(sceneID, 2013, models.StatusExtracted)
	// A different year has its own throttle.
	b.PublishSceneEvent("LT51910561990052AAA03", 1990, models.StatusDownloaded)

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	summaryCount := 0
	sceneCount := 0
	var sawExtracted bool
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "year.updated") {
				summaryCount++
			} else {
				sceneCount++
			}
			if strings.Contains(s, "event: scene.extracted") {
				sawExtracted = true
			}
		default:
			break loop
		}
	}

	if sceneCount != 3 {
		t.Errorf("scene events = %d, want 3", sceneCount)
	}
	if summaryCount != 2 {
		t.Errorf("summary events = %d, want 2 (throttled per year)", summaryCount)
	}
	if !sawExtracted {
		t.Error("missing scene.extracted event")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishSceneEvent(sceneID, 2013, models.StatusComposited)
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: scene.composited") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.PublishSceneEvent(sceneID, 2013, models.StatusProjected)
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "run.finished", Data: map[string]string{"year": "2013"}})
	b.PublishSceneEvent(sceneID, 2013, models.StatusComposited)
}

func next(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestYearSummaryCountsLatestStatus(t *testing.T) {
	b := NewBroker(time.Nanosecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishSceneEvent(sceneID, 2013, models.StatusDownloaded)
	next(t, ch) // scene.downloaded
	next(t, ch) // year.updated
	time.Sleep(time.Millisecond)
	b.PublishSceneEvent(sceneID, 2013, models.StatusComposited)
	next(t, ch) // scene.composited

	summary := next(t, ch)
	if !strings.Contains(summary, "event: year.updated") {
		t.Fatalf("want year.updated, got %q", summary)
	}
	if !strings.Contains(summary, `"scenes":1`) || !strings.Contains(summary, `"composited":1`) {
		t.Errorf("summary should count the scene once in its latest status: %q", summary)
	}
	if strings.Contains(summary, `"downloaded"`) {
		t.Errorf("stale status in summary: %q", summary)
	}
}

func TestSubscribeReplaysYearSummaries(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	b.PublishSceneEvent(sceneID, 2013, models.StatusProjected)
	b.PublishSceneEvent("LT51910561990052AAA03", 1990, models.StatusPending)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	first, second := next(t, ch), next(t, ch)
	if !strings.Contains(first, `"year":1990`) || !strings.Contains(second, `"year":2013`) {
		t.Errorf("replay should list years in order: %q then %q", first, second)
	}
	if !strings.Contains(second, `"projected":1`) {
		t.Errorf("replayed summary missing counts: %q", second)
	}
}

func TestEventsCarryIncreasingIDs(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "run.started", Data: map[string]string{"year": "2013"}})
	b.Publish(Event{Type: "run.finished", Data: map[string]string{"year": "2013"}})

	if got := next(t, ch); !strings.HasPrefix(got, "id: 1\n") {
		t.Errorf("first frame = %q", got)
	}
	if got := next(t, ch); !strings.HasPrefix(got, "id: 2\n") {
		t.Errorf("second frame = %q", got)
	}
}
