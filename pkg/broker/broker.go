/*
Package broker implements the distributed broker: single-threaded,
event-loop-driven authoritative state matching producers and workers,
with two-stage acknowledgement, timeout-driven resend/requeue, and
result-store backpressure. All queue, ready-list, and ack-table
mutation happens inside the one event-loop goroutine; connection
goroutines are pure message pumps with no shared state beyond the
event channel they feed.
*/
package broker

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bnagy/bm2-core/pkg/framing"
)

// Config configures one broker instance.
type Config struct {
	ListenAddr    string        // default 0.0.0.0:10001
	DBQMax        int           // pending result-store queue size that triggers shedding
	PollInterval  time.Duration // ack timeout before resend/requeue
}

// DefaultConfig returns the broker's documented defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "0.0.0.0:10001",
		DBQMax:       1000,
		PollInterval: 5 * time.Second,
	}
}

// peer wraps one accepted connection: a serialized writer (connection
// writes aren't safe for concurrent use, but the event loop is the
// only writer in practice since sends happen from handler code) and an
// identity used in log fields and ack-table entries.
type peer struct {
	id   string
	conn net.Conn
	mu   sync.Mutex
}

func (p *peer) send(m framing.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return framing.WriteTo(p.conn, m)
}

// event is what a connection goroutine or a timer pushes onto the
// broker's single channel for the event loop to consume.
type event struct {
	kind      eventKind
	peer      *peer
	msg       framing.Message
	ackID     string
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventConnClosed
	eventTimeout
)

type queueState struct {
	pending []pendingTest
	ready   []*peer
}

type pendingTest struct {
	producerAckID string
	producer      *peer
	msg           framing.Message
}

// unansweredEntry tracks one outbound message awaiting its ack_msg.
// On timeout, resend goes back to peer directly unless queueName is
// set, in which case the payload is re-enqueued on that queue instead.
type unansweredEntry struct {
	ackID     string
	peer      *peer
	queueName string
	payload   framing.Message
	timer     *time.Timer
	onAck     func(framing.Message)
}

// delayedResult bridges a result-store ack back to the producer that
// is owed the second-stage ack_msg once persistence completes.
type delayedResult struct {
	producerAckID string
	producer      *peer
	resultStatus  string
	crc32         uint32
	tag           any
	crashDetail   string
}

// Broker owns all event-loop state. Every field below is read and
// mutated exclusively from the goroutine running Run.
type Broker struct {
	cfg Config
	log *logrus.Logger

	queues map[string]*queueState

	pendingResultStore []pendingTest
	readyResultStore   []*peer

	unanswered     map[string]*unansweredEntry
	delayedResults map[string]*delayedResult

	queueShedding bool

	events chan event
	ln     net.Listener

	// readyAddr receives the listener's bound address once
	// ListenAndServe starts listening; buffered so tests that bind to
	// ":0" can discover the actual port without racing the event loop.
	readyAddr chan net.Addr
}

// New constructs a Broker in its zero-traffic state.
func New(cfg Config, log *logrus.Logger) *Broker {
	if log == nil {
		log = logrus.New()
	}
	return &Broker{
		cfg:            cfg,
		log:            log,
		queues:         make(map[string]*queueState),
		unanswered:     make(map[string]*unansweredEntry),
		delayedResults: make(map[string]*delayedResult),
		events:         make(chan event, 256),
		readyAddr:      make(chan net.Addr, 1),
	}
}

func (b *Broker) queue(name string) *queueState {
	q, ok := b.queues[name]
	if !ok {
		q = &queueState{}
		b.queues[name] = q
	}
	return q
}

// ListenAndServe starts accepting connections and runs the event loop
// until ctx is cancelled or the listener fails.
func (b *Broker) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("broker: listen %s: %w", b.cfg.ListenAddr, err)
	}
	b.ln = ln
	b.log.WithField("addr", ln.Addr().String()).Info("broker listening")
	b.readyAddr <- ln.Addr()

	go b.acceptLoop(ctx)
	return b.runEventLoop(ctx)
}

// Addr blocks until ListenAndServe has bound its listener, then returns
// its address. Intended for tests that bind to an ephemeral port.
func (b *Broker) Addr() net.Addr {
	addr := <-b.readyAddr
	b.readyAddr <- addr
	return addr
}

func (b *Broker) acceptLoop(ctx context.Context) {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				b.log.WithError(err).Warn("accept failed")
				return
			}
		}
		p := &peer{id: uuid.NewString(), conn: conn}
		go b.readLoop(p)
	}
}

func (b *Broker) readLoop(p *peer) {
	r := framing.NewReader(p.conn)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			b.events <- event{kind: eventConnClosed, peer: p}
			return
		}
		b.events <- event{kind: eventMessage, peer: p, msg: msg}
	}
}

func (b *Broker) runEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.ln.Close()
			return ctx.Err()
		case ev := <-b.events:
			b.handle(ev)
		}
	}
}

func (b *Broker) handle(ev event) {
	switch ev.kind {
	case eventMessage:
		b.handleMessage(ev.peer, ev.msg)
	case eventConnClosed:
		b.handleConnClosed(ev.peer)
	case eventTimeout:
		b.handleTimeout(ev.ackID)
	}
}

func (b *Broker) handleConnClosed(p *peer) {
	// Servers do not initiate reconnects; a dropped peer is removed from
	// every worker and result-store ready list it was on, so no further
	// test or result is matched to it. Tests it submitted stay pending.
	b.log.WithField("peer", p.id).Debug("connection closed")
	for _, q := range b.queues {
		q.ready = removePeer(q.ready, p)
	}
	b.readyResultStore = removePeer(b.readyResultStore, p)
}

func removePeer(list []*peer, p *peer) []*peer {
	out := list[:0]
	for _, x := range list {
		if x != p {
			out = append(out, x)
		}
	}
	return out
}

func (b *Broker) newAckID() string { return uuid.NewString() }
