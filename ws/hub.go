// Package ws forwards scores to websocket subscribers as binary frames.
//
// The frame payload is each score's exact original byte range, straight
// from the scanned API response. Nothing is re-encoded: what the API sent
// for a score is byte-for-byte what subscribers receive.
//
// Subscriber protocol:
//
//   - Within the initial deadline after connecting, the client sends a text
//     message: either "connect" for the live stream only, or a decimal
//     score id to first replay every retained score newer than that id.
//   - The server then streams scores as binary frames.
//   - A "disconnect" text message is answered with the newest score id
//     delivered to that connection, usable as the resume id of the next
//     connection, after which the server closes.
package ws

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/osukit/scoresws/history"
	"github.com/osukit/scoresws/score"
)

const (
	// DefaultInitialDeadline bounds the wait for the client's initial
	// message.
	DefaultInitialDeadline = 5 * time.Second

	// subscriberQueueSize is the per-connection send queue. A subscriber
	// that falls this far behind is disconnected.
	subscriberQueueSize = 256
)

// Hub fans out incoming scores to all subscribed connections.
type Hub struct {
	hist *history.History
	log  *slog.Logger

	initialDeadline time.Duration

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	delivered atomic.Uint64
}

type subscriber struct {
	send chan score.Score

	// stopped makes the writer discard queued frames once the client has
	// announced its disconnect.
	stopped atomic.Bool

	// lastID is the newest id delivered on this connection; sent back as
	// the resume token on "disconnect".
	lastID atomic.Uint64
}

// NewHub creates a Hub replaying from hist.
func NewHub(hist *history.History, log *slog.Logger) *Hub {
	return &Hub{
		hist:            hist,
		log:             log,
		initialDeadline: DefaultInitialDeadline,
		subs:            make(map[*subscriber]struct{}),
	}
}

// Run broadcasts every score received on in until ctx is canceled or in is
// closed.
func (h *Hub) Run(ctx context.Context, in <-chan score.Score) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-in:
			if !ok {
				return
			}

			h.Broadcast(sc)
		}
	}
}

// Broadcast queues sc on every subscriber. Subscribers whose queue is full
// are dropped; a consumer that slow would only ever fall further behind.
func (h *Hub) Broadcast(sc score.Score) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.delivered.Add(1)

	for sub := range h.subs {
		select {
		case sub.send <- sc:
		default:
			h.log.Warn("dropping slow subscriber", "queued", len(sub.send))
			close(sub.send)
			delete(h.subs, sub)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Delivered returns the number of scores broadcast so far.
func (h *Hub) Delivered() uint64 {
	return h.delivered.Load()
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[sub] = struct{}{}
}

// unregister removes sub, closing its queue, and reports whether it was
// still registered; false means Broadcast already dropped it.
func (h *Hub) unregister(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return false
	}

	delete(h.subs, sub)
	close(sub.send)

	return true
}

// Handler returns the websocket handler serving the subscriber protocol.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	resume, ok := h.handshake(conn)
	if !ok {
		return
	}

	sub := &subscriber{
		send: make(chan score.Score, subscriberQueueSize),
	}

	// Register before the replay so live scores arriving during the replay
	// wait in the queue instead of being lost. The writer skips ids at or
	// below the replay high-water mark, so the overlap cannot duplicate
	// frames.
	h.register(sub)
	defer h.unregister(sub)

	if resume.replay {
		for _, sc := range h.hist.Since(resume.id) {
			if err := websocket.Message.Send(conn, sc.Raw()); err != nil {
				return
			}

			sub.lastID.Store(sc.ID())
		}
	}

	// Scores broadcast while the replay was running are already queued, so
	// anything at or below the replay high-water mark would go out twice.
	replayMax := sub.lastID.Load()

	// Single writer for the connection; the reader below only receives
	// until the writer has stopped.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for sc := range sub.send {
			if sub.stopped.Load() || sc.ID() <= replayMax {
				continue
			}

			if err := websocket.Message.Send(conn, sc.Raw()); err != nil {
				return
			}

			if id := sc.ID(); id > sub.lastID.Load() {
				sub.lastID.Store(id)
			}
		}
	}()

	wantResume := h.reader(conn, sub)
	<-writerDone

	if wantResume {
		resumeID := sub.lastID.Load()
		if resumeID == 0 {
			// Nothing was delivered on this connection; fall back to the
			// newest retained score.
			resumeID, _ = h.hist.Newest()
		}

		_ = websocket.Message.Send(conn, strconv.FormatUint(resumeID, 10))
	}
}

type resumePoint struct {
	replay bool
	id     uint64
}

// handshake reads the initial "connect"-or-score-id message.
func (h *Hub) handshake(conn *websocket.Conn) (resumePoint, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(h.initialDeadline))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var initial string
	if err := websocket.Message.Receive(conn, &initial); err != nil {
		h.log.Debug("no initial message", "err", err)
		return resumePoint{}, false
	}

	if initial == "connect" {
		return resumePoint{}, true
	}

	id, err := strconv.ParseUint(initial, 10, 64)
	if err != nil {
		h.log.Debug("invalid initial message", "msg", initial)
		return resumePoint{}, false
	}

	return resumePoint{replay: true, id: id}, true
}

// reader consumes control messages until the connection closes or the
// client sends "disconnect". It returns whether a resume id should be sent,
// and always stops the writer before returning.
func (h *Hub) reader(conn *websocket.Conn, sub *subscriber) bool {
	for {
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			sub.stopped.Store(true)
			h.unregister(sub)

			return false
		}

		if msg != "disconnect" {
			continue
		}

		sub.stopped.Store(true)

		return h.unregister(sub)
	}
}
