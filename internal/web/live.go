package web

import (
	"sync"

	"golang.org/x/net/websocket"

	"invitation-site/internal/metrics"
	"invitation-site/internal/render"
)

// livePeer is one connected browser
type livePeer struct {
	updates chan render.View
}

// liveHub keeps the latest view and fans it out to connected browsers
type liveHub struct {
	mu     sync.Mutex
	peers  map[*livePeer]struct{}
	latest *render.View
	closed bool
}

func newLiveHub() *liveHub {
	return &liveHub{peers: make(map[*livePeer]struct{})}
}

func (h *liveHub) join() (*livePeer, *render.View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, false
	}
	peer := &livePeer{updates: make(chan render.View, 1)}
	h.peers[peer] = struct{}{}
	return peer, h.latest, true
}

func (h *liveHub) leave(peer *livePeer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[peer]; ok {
		delete(h.peers, peer)
		close(peer.updates)
	}
}

func (h *liveHub) publish(view render.View) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &view
	for peer := range h.peers {
		select {
		case peer.updates <- view:
		default:
			// The browser has not taken the previous view yet; replace it.
			select {
			case <-peer.updates:
			default:
			}
			peer.updates <- view
		}
	}
}

func (h *liveHub) current() (render.View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.latest == nil {
		return render.View{}, false
	}
	return *h.latest, true
}

func (h *liveHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for peer := range h.peers {
		delete(h.peers, peer)
		close(peer.updates)
	}
}

// serveLive streams guest list views to one browser until it disconnects
func (s *Server) serveLive(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	peer, latest, ok := s.live.join()
	if !ok {
		return
	}
	defer s.live.leave(peer)

	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	if latest != nil {
		if err := websocket.JSON.Send(conn, latest); err != nil {
			return
		}
	}

	// The browser never sends anything; reading only detects disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case view, ok := <-peer.updates:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, view); err != nil {
				s.log.Debug().Err(err).Msg("Live client write failed")
				return
			}
		}
	}
}
