/*
Package producerharness implements the producer side of the broker
protocol: announce startup, then on each startup ack (initial or after
a broker-issued reset) pull test cases from a user-supplied generator,
attach a tag, submit them, and track delivery/result acks in local
counters until the generator is exhausted.
*/
package producerharness

import (
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bnagy/bm2-core/pkg/framing"
	"github.com/bnagy/bm2-core/pkg/generators"
)

// Config configures one producer harness instance.
type Config struct {
	Queue string
}

// Counters tracks local bookkeeping the harness accumulates as acks
// arrive.
type Counters struct {
	Submitted int
	Delivered int
	Results   int
	Crashes   int
}

// Producer drives the client_startup / new_test_case / ack_msg loop
// over one framed connection, pulling from gen until exhausted.
type Producer struct {
	cfg      Config
	gen      generators.Generator[[]byte]
	log      *logrus.Logger
	counters Counters
	iter     int
	nextID   int
}

// New constructs a Producer pulling test cases from gen.
func New(cfg Config, gen generators.Generator[[]byte], log *logrus.Logger) *Producer {
	if log == nil {
		log = logrus.New()
	}
	return &Producer{cfg: cfg, gen: gen, log: log, nextID: 1}
}

// Counters returns a snapshot of the producer's local bookkeeping.
func (p *Producer) Counters() Counters { return p.counters }

type framingConn interface {
	io.Reader
	io.Writer
}

// Run sends client_startup and then drives the event loop until the
// generator is exhausted or conn returns a read error.
func (p *Producer) Run(conn framingConn) error {
	if err := p.sendStartup(conn); err != nil {
		return err
	}

	r := framing.NewReader(conn)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return err
		}
		switch msg.Verb {
		case framing.VerbAckMsg:
			if p.handleAck(conn, msg) {
				return nil // generator exhausted
			}
		case framing.VerbShutdown:
			return p.sendStartup(conn) // "reset": re-announce startup
		default:
			p.log.WithField("verb", msg.Verb).Debug("producerharness: ignoring verb")
		}
	}
}

func (p *Producer) sendStartup(conn framingConn) error {
	return framing.WriteTo(conn, framing.Message{
		Verb:   framing.VerbClientStartup,
		Fields: map[string]any{"client_type": "producer"},
	})
}

// handleAck classifies an inbound ack_msg: a startup_ack triggers the
// first submission, a delivery-receipt ack just increments counters, a
// result ack (carrying "result") increments result/crash counters.
// Returns true once the generator has been exhausted and there is
// nothing further to submit.
func (p *Producer) handleAck(conn framingConn, msg framing.Message) bool {
	if v, ok := msg.Field("startup_ack"); ok {
		if b, _ := v.(bool); b {
			return p.submitNext(conn)
		}
	}
	if result, ok := msg.Field("result"); ok {
		p.counters.Results++
		if s, _ := result.(string); s == "crash" {
			p.counters.Crashes++
		}
		return p.submitNext(conn)
	}
	// Plain delivery-receipt ack.
	p.counters.Delivered++
	return false
}

// submitNext pulls the next value from the generator and sends it as a
// new_test_case, or returns true if the generator is exhausted.
func (p *Producer) submitNext(conn framingConn) bool {
	if !p.gen.HasNext() {
		p.log.Info("producerharness: generator exhausted, stopping")
		return true
	}
	data, err := p.gen.Next()
	if err != nil {
		p.log.WithError(err).Warn("producerharness: generator error, stopping")
		return true
	}

	id := p.nextID
	p.nextID++
	p.iter++
	crc := crc32.ChecksumIEEE(data)

	tag := map[string]any{
		"producer_crc": crc,
		"timestamp":    time.Now().UTC().Format(time.RFC3339Nano),
		"iteration":    p.iter,
	}

	err = framing.WriteTo(conn, framing.Message{
		Verb: framing.VerbNewTestCase,
		Fields: map[string]any{
			"id":    fmt.Sprintf("%d", id),
			"data":  data,
			"crc32": crc,
			"queue": p.cfg.Queue,
			"tag":   tag,
		},
	})
	if err != nil {
		p.log.WithError(err).Warn("producerharness: send new_test_case failed")
		return true
	}
	p.counters.Submitted++
	return false
}
