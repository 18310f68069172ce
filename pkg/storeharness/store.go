/*
Package storeharness implements the result-store side of the broker
protocol: announce availability with db_ready, receive a broker-
forwarded test_result, persist it via pkg/store, and ack back with the
allocated db_id. It mirrors pkg/workerharness's idle client_ready /
deliver loop shape, one stage further down the pipeline.
*/
package storeharness

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bnagy/bm2-core/pkg/framing"
)

// ResultHandler persists one test_result message and returns the id
// of the row it allocated (crash_id, result_id, or template_id,
// depending on status), for echoing back as db_id.
type ResultHandler func(msg framing.Message) (dbID int64, err error)

// Config configures one store harness instance.
type Config struct{}

// Harness runs the db_ready / test_result / ack_msg loop over one
// framed connection.
type Harness struct {
	cfg     Config
	persist ResultHandler
	log     *logrus.Logger
}

// New constructs a Harness bound to persist.
func New(cfg Config, persist ResultHandler, log *logrus.Logger) *Harness {
	if log == nil {
		log = logrus.New()
	}
	return &Harness{cfg: cfg, persist: persist, log: log}
}

// framingConn is the subset of net.Conn framing needs; kept narrow so
// tests can supply an in-memory pipe.
type framingConn interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// Run drives the idle db_ready / test_result loop over conn until it
// closes or returns a read error.
func (h *Harness) Run(conn framingConn) error {
	r := framing.NewReader(conn)

	for {
		if err := framing.WriteTo(conn, framing.Message{Verb: framing.VerbDBReady}); err != nil {
			return fmt.Errorf("storeharness: send db_ready: %w", err)
		}

		msg, err := r.ReadMessage()
		if err != nil {
			return err
		}
		if msg.Verb != framing.VerbTestResult {
			h.log.WithField("verb", msg.Verb).Warn("storeharness: unexpected verb while idle")
			continue
		}
		h.handleTestResult(conn, msg)
	}
}

func (h *Harness) handleTestResult(conn framingConn, msg framing.Message) {
	ackVal, _ := msg.Field("ack_id")

	dbID, err := h.safePersist(msg)
	if err != nil {
		h.log.WithError(err).Warn("storeharness: persist failed, dropping result")
		return
	}

	_ = framing.WriteTo(conn, framing.Message{
		Verb: framing.VerbAckMsg,
		Fields: map[string]any{
			"ack_id": ackVal,
			"db_id":  dbID,
		},
	})
}

// safePersist calls the user handler and converts a panic into an
// error, matching the workerharness hook's "drop rather than crash the
// loop" contract.
func (h *Harness) safePersist(msg framing.Message) (dbID int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("storeharness: persist panicked: %v", r)
		}
	}()
	return h.persist(msg)
}
