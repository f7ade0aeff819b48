// Package sse streams pipeline progress to browsers as Server-Sent Events.
package sse

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/starford/timelapse/internal/models"
)

const (
	clientBuffer = 64
	opsBuffer    = 256
)

// Event is one message on the stream. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SceneChange is the payload of scene.<status> events.
type SceneChange struct {
	SceneID string             `json:"scene_id"`
	Year    int                `json:"year"`
	Status  models.SceneStatus `json:"status"`
}

// YearSummary is the payload of year.updated events: how many scenes of the
// year have been seen and how many sit in each status.
type YearSummary struct {
	Year   int                        `json:"year"`
	Scenes int                        `json:"scenes"`
	Counts map[models.SceneStatus]int `json:"counts"`
}

// Broker fans events out to subscribers.
//
// Every piece of mutable state lives in a hub owned by the run goroutine;
// public methods queue closures on ops and never touch the hub directly.
type Broker struct {
	summaryEvery time.Duration
	keepAlive    time.Duration

	ops     chan func(*hub)
	quit    chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// NewBroker starts a broker. year.updated summaries are sent at most once
// per summaryEvery for each year.
func NewBroker(summaryEvery time.Duration) *Broker {
	if summaryEvery <= 0 {
		summaryEvery = 2 * time.Second
	}
	b := &Broker{
		summaryEvery: summaryEvery,
		keepAlive:    15 * time.Second,
		ops:          make(chan func(*hub), opsBuffer),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.done)
	h := &hub{
		clients: make(map[chan []byte]struct{}),
		years:   make(map[int]*yearProgress),
	}
	for {
		select {
		case <-b.quit:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do queues op for the hub goroutine. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closing.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closing.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. The returned channel first receives the
// latest summary of every year seen so far, then live events, and is closed
// by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	if !b.do(func(h *hub) {
		h.clients[ch] = struct{}{}
		h.replay(ch)
		close(added)
	}) {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.done:
		// The hub closed ch on shutdown only if it had registered it.
		select {
		case <-added:
		default:
			close(ch)
		}
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(h *hub) { n <- len(h.clients) }) {
		return 0
	}
	select {
	case v := <-n:
		return v
	case <-b.done:
		return 0
	}
}

// Publish broadcasts event to every subscriber.
func (b *Broker) Publish(event Event) {
	b.do(func(h *hub) { h.broadcast(event) })
}

// PublishSceneEvent broadcasts a scene.<status> event and, throttled per
// year, a year.updated summary.
func (b *Broker) PublishSceneEvent(sceneID string, year int, status models.SceneStatus) {
	change := SceneChange{SceneID: sceneID, Year: year, Status: status}
	now := time.Now()
	b.do(func(h *hub) {
		h.broadcast(Event{Type: "scene." + string(status), Data: change})
		p := h.progress(year)
		p.scenes[sceneID] = status
		if now.Sub(p.lastSummary) >= b.summaryEvery {
			p.lastSummary = now
			h.broadcast(Event{Type: "year.updated", Data: p.summary(year)})
		}
	})
}

type hub struct {
	seq     uint64
	clients map[chan []byte]struct{}
	years   map[int]*yearProgress
}

type yearProgress struct {
	scenes      map[string]models.SceneStatus
	lastSummary time.Time
}

func (h *hub) progress(year int) *yearProgress {
	p, ok := h.years[year]
	if !ok {
		p = &yearProgress{scenes: make(map[string]models.SceneStatus)}
		h.years[year] = p
	}
	return p
}

func (p *yearProgress) summary(year int) YearSummary {
	s := YearSummary{Year: year, Scenes: len(p.scenes), Counts: make(map[models.SceneStatus]int)}
	for _, status := range p.scenes {
		s.Counts[status]++
	}
	return s
}

// broadcast never blocks: a client whose buffer is full misses the event.
func (h *hub) broadcast(event Event) {
	frame := h.frame(event)
	if frame == nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (h *hub) replay(ch chan []byte) {
	years := make([]int, 0, len(h.years))
	for y := range h.years {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		frame := h.frame(Event{Type: "year.updated", Data: h.years[y].summary(y)})
		if frame == nil {
			continue
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

func (h *hub) frame(event Event) []byte {
	h.seq++
	frame, err := encode(h.seq, event)
	if err != nil {
		return nil
	}
	return frame
}
