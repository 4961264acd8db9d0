package mock

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// peer is one websocket client with its own write pump.
type peer struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newPeer(conn *websocket.Conn) *peer {
	p := &peer{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go p.writePump()
	return p
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// close stops the write pump after it drains; the pump then sends a normal
// close frame.
func (p *peer) close() {
	p.once.Do(func() { close(p.send) })
}

// hub fans messages out to a set of peers. Peers that cannot keep up are
// dropped.
type hub struct {
	mu    sync.RWMutex
	peers map[*peer]bool
	log   *log.Logger
}

func newHub(logger *log.Logger) *hub {
	return &hub{peers: make(map[*peer]bool), log: logger}
}

func (h *hub) add(conn *websocket.Conn, first []byte) *peer {
	p := newPeer(conn)
	if first != nil {
		p.send <- first
	}
	h.mu.Lock()
	h.peers[p] = true
	h.mu.Unlock()
	return p
}

func (h *hub) remove(p *peer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		p.close()
	}
	h.mu.Unlock()
}

// broadcast queues data for every peer. Sends happen under the read lock so
// a concurrent remove cannot close a channel mid-send.
func (h *hub) broadcast(data []byte) int {
	sent := 0
	var slow []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.send <- data:
			sent++
		default:
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range slow {
		h.log.Warn("peer too slow, disconnecting")
		h.remove(p)
	}
	return sent
}

// sendTo queues data for a single peer if it is still registered.
func (h *hub) sendTo(p *peer, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.peers[p] {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for p := range h.peers {
		delete(h.peers, p)
		p.close()
	}
	h.mu.Unlock()
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}
