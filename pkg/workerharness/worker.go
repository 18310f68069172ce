/*
Package workerharness implements the worker side of the broker
protocol: announce readiness, verify and execute a delivered test via
a user-supplied hook, and ack back with a result — crashing results
get a per-host UUID, content hashes, and a timestamp attached before
the ack goes out.
*/
package workerharness

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bnagy/bm2-core/pkg/framing"
)

// DeliveryHook executes one delivered test case and reports a status
// ("success", "crash", or any other value treated as a plain result)
// plus, for crashes, the debugger detail text.
type DeliveryHook func(data []byte) (status string, detail string)

// Config configures one worker harness instance.
type Config struct {
	Queue   string // the named queue this worker serves
	HostTag string // stable per-host identifier folded into crash tags
}

// Worker runs the client_ready / deliver / ack loop over one framed
// connection.
type Worker struct {
	cfg   Config
	hook  DeliveryHook
	log   *logrus.Logger
	hostID string
}

// New constructs a Worker bound to hook.
func New(cfg Config, hook DeliveryHook, log *logrus.Logger) *Worker {
	if log == nil {
		log = logrus.New()
	}
	return &Worker{cfg: cfg, hook: hook, log: log, hostID: uuid.NewString()}
}

// Run drives the idle client_ready / deliver loop over conn until it
// closes or returns a read error.
func (w *Worker) Run(conn framingConn) error {
	r := framing.NewReader(conn)

	for {
		if err := framing.WriteTo(conn, framing.Message{
			Verb:   framing.VerbClientReady,
			Fields: map[string]any{"queue": w.cfg.Queue},
		}); err != nil {
			return fmt.Errorf("workerharness: send client_ready: %w", err)
		}

		msg, err := r.ReadMessage()
		if err != nil {
			return err
		}
		if msg.Verb != framing.VerbDeliver {
			w.log.WithField("verb", msg.Verb).Warn("workerharness: unexpected verb while idle")
			continue
		}
		w.handleDeliver(conn, msg)
	}
}

// framingConn is the subset of net.Conn framing needs; kept narrow so
// tests can supply an in-memory pipe.
type framingConn interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

func (w *Worker) handleDeliver(conn framingConn, msg framing.Message) {
	dataVal, _ := msg.Field("data")
	data, _ := dataVal.([]byte)
	crcVal, _ := msg.Field("crc32")
	wantCRC, _ := crcVal.(uint32)
	ackID, _ := msg.Field("ack_id")
	tag, _ := msg.Field("tag")

	if crc32.ChecksumIEEE(data) != wantCRC {
		_ = framing.WriteTo(conn, framing.Message{
			Verb: framing.VerbAckMsg,
			Fields: map[string]any{
				"ack_id": ackID,
				"status": "error",
			},
		})
		return
	}

	status, detail := w.safeRunHook(data)
	if status == "" {
		// Hook panicked or otherwise signalled "drop this", per
		// spec.md §4.8: the broker will re-deliver on timeout.
		return
	}

	fields := map[string]any{
		"ack_id": ackID,
		"status": status,
		"crc32":  wantCRC,
	}
	if status == "crash" {
		fields["detail"] = detail
		fields["tag"] = w.augmentTag(tag, data, detail)
	} else {
		fields["tag"] = tag
	}

	_ = framing.WriteTo(conn, framing.Message{Verb: framing.VerbAckMsg, Fields: fields})
}

// safeRunHook calls the user hook and converts a panic into an empty
// status, matching the "silently drop on any exception" contract.
func (w *Worker) safeRunHook(data []byte) (status, detail string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Warn("workerharness: delivery hook panicked, dropping result")
			status, detail = "", ""
		}
	}()
	return w.hook(data)
}

// augmentTag attaches a per-host UUID, the configured host tag, MD5
// hashes of the data and detail, and a timestamp to a crashing result's
// tag, per spec.md §4.8.
func (w *Worker) augmentTag(tag any, data []byte, detail string) map[string]any {
	out := map[string]any{
		"orig_tag":     tag,
		"host_id":      w.hostID,
		"host_tag":     w.cfg.HostTag,
		"data_md5":     md5Hex(data),
		"detail_md5":   md5Hex([]byte(detail)),
		"crashed_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	return out
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
