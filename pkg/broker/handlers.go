package broker

import (
	"fmt"

	"github.com/bnagy/bm2-core/pkg/framing"
)

func (b *Broker) handleMessage(p *peer, msg framing.Message) {
	switch msg.Verb {
	case framing.VerbClientStartup:
		b.handleClientStartup(p, msg)
	case framing.VerbClientReady:
		b.handleClientReady(p, msg)
	case framing.VerbDBReady:
		b.handleDBReady(p)
	case framing.VerbNewTestCase:
		b.handleNewTestCase(p, msg)
	case framing.VerbAckMsg:
		b.handleAckMsg(p, msg)
	case framing.VerbTestResult:
		b.handleTestResult(p, msg)
	default:
		b.log.WithField("verb", msg.Verb).Warn("broker: unrecognised verb")
	}
}

// handleClientStartup acks a producer's announcement with
// startup_ack=true, per spec.md §4.6's client_startup row.
func (b *Broker) handleClientStartup(p *peer, msg framing.Message) {
	ackID := b.newAckID()
	_ = p.send(framing.Message{
		Verb: framing.VerbAckMsg,
		Fields: map[string]any{
			"ack_id":      ackID,
			"startup_ack": true,
		},
	})
}

// handleClientReady records a worker as ready for its named queue,
// then immediately tries to match it against a pending test.
func (b *Broker) handleClientReady(p *peer, msg framing.Message) {
	queueName, _ := msg.Field("queue")
	name, _ := queueName.(string)
	if name == "" {
		name = "default"
	}
	q := b.queue(name)
	q.ready = append(q.ready, p)
	b.tryMatch(name)
}

func (b *Broker) handleDBReady(p *peer) {
	b.readyResultStore = append(b.readyResultStore, p)
	b.tryMatchResultStore()
}

// handleNewTestCase enqueues a producer's test, dropping exact
// producer_ack_id duplicates already pending (invariant: no duplicate
// in a queue), then tries to match a ready worker unless shedding.
func (b *Broker) handleNewTestCase(p *peer, msg framing.Message) {
	ackIDVal, _ := msg.Field("producer_ack_id")
	producerAckID, _ := ackIDVal.(string)
	if producerAckID == "" {
		if idVal, ok := msg.Field("id"); ok {
			producerAckID = fmt.Sprintf("%v", idVal)
		}
	}

	queueVal, _ := msg.Field("queue")
	name, _ := queueVal.(string)
	if name == "" {
		name = "default"
	}
	q := b.queue(name)

	for _, pt := range q.pending {
		if pt.producerAckID == producerAckID {
			return // duplicate new_test_case before first delivery: exactly one deliver
		}
	}

	q.pending = append(q.pending, pendingTest{
		producerAckID: producerAckID,
		producer:      p,
		msg:           msg,
	})

	b.tryMatch(name)
}

// tryMatch pairs the front of the pending queue with the front of the
// ready-workers queue, honoring queue shedding: while shedding, a
// ready worker stays unmatched even if tests are pending.
func (b *Broker) tryMatch(name string) {
	if b.queueShedding {
		return
	}
	q := b.queue(name)
	for len(q.pending) > 0 && len(q.ready) > 0 {
		test := q.pending[0]
		q.pending = q.pending[1:]
		worker := q.ready[0]
		q.ready = q.ready[1:]
		b.deliver(worker, test)
	}
}

func (b *Broker) deliver(worker *peer, test pendingTest) {
	data, _ := test.msg.Field("data")
	crc, _ := test.msg.Field("crc32")
	tag, _ := test.msg.Field("tag")
	options, _ := test.msg.Field("options")

	ackID := b.newAckID()
	payload := framing.Message{
		Verb: framing.VerbDeliver,
		Fields: map[string]any{
			"ack_id":          ackID,
			"data":            data,
			"server_id":       worker.id,
			"producer_ack_id": test.producerAckID,
			"crc32":           crc,
			"tag":             tag,
			"options":         options,
		},
	}

	b.armTimeout(ackID, worker, "", payload, func(resp framing.Message) {
		b.onDeliverAck(test, resp)
	})

	if err := worker.send(payload); err != nil {
		b.log.WithError(err).Warn("broker: deliver send failed")
		return
	}

	// First-stage ack_msg: delivery receipt to the producer.
	_ = test.producer.send(framing.Message{
		Verb: framing.VerbAckMsg,
		Fields: map[string]any{
			"ack_id": test.producerAckID,
		},
	})
}

// onDeliverAck verifies the worker's echoed crc32, classifies the
// worker's status, and routes crash/success results on to the
// result-store queue, per spec.md §4.7's deliver-ack handling.
func (b *Broker) onDeliverAck(test pendingTest, resp framing.Message) {
	theirCRC, _ := resp.Field("crc32")
	ourCRC, _ := test.msg.Field("crc32")
	if fmt.Sprintf("%v", theirCRC) != fmt.Sprintf("%v", ourCRC) {
		b.log.WithFields(map[string]any{
			"ours":  ourCRC,
			"theirs": theirCRC,
		}).Error("broker: crc32 mismatch on deliver ack — broker bug")
		return
	}

	status, _ := resp.Field("status")
	statusStr, _ := status.(string)
	if statusStr == "error" {
		return // dropped per spec
	}

	crashDetail := ""
	if statusStr == "crash" {
		if d, ok := resp.Field("detail"); ok {
			crashDetail, _ = d.(string)
		}
	}

	crcUint, _ := ourCRC.(uint32)
	tag, _ := test.msg.Field("tag")
	data, _ := test.msg.Field("data")
	queue, _ := test.msg.Field("queue")

	resultAckID := b.newAckID()
	b.delayedResults[resultAckID] = &delayedResult{
		producerAckID: test.producerAckID,
		producer:      test.producer,
		resultStatus:  statusStr,
		crc32:         crcUint,
		tag:           tag,
		crashDetail:   crashDetail,
	}

	pt := pendingTest{producerAckID: resultAckID, msg: framing.Message{
		Verb: framing.VerbTestResult,
		Fields: map[string]any{
			"result_ack_id": resultAckID,
			"status":        statusStr,
			"detail":        crashDetail,
			"crc32":         crcUint,
			"tag":           tag,
			"data":          data,
			"queue":         queue,
		},
	}}
	b.pendingResultStore = append(b.pendingResultStore, pt)

	if len(b.pendingResultStore) > b.cfg.DBQMax {
		b.queueShedding = true
		b.log.Warn("broker: queue_shedding enabled, result-store backlog exceeded dbq_max")
	}

	b.tryMatchResultStore()
}

func (b *Broker) tryMatchResultStore() {
	for len(b.pendingResultStore) > 0 && len(b.readyResultStore) > 0 {
		work := b.pendingResultStore[0]
		b.pendingResultStore = b.pendingResultStore[1:]
		worker := b.readyResultStore[0]
		b.readyResultStore = b.readyResultStore[1:]

		ackID := b.newAckID()
		payload := work.msg
		payload.Fields["ack_id"] = ackID

		b.armTimeout(ackID, worker, "", payload, func(resp framing.Message) {
			b.onResultStoreAck(work.producerAckID, resp)
		})
		_ = worker.send(payload)
	}

	if b.queueShedding && len(b.pendingResultStore) == 0 {
		b.queueShedding = false
		b.log.Info("broker: queue_shedding cleared")
	}
}

// onResultStoreAck fires the second-stage ack_msg back to the original
// producer, carrying result, db_id, and crash extras when applicable.
func (b *Broker) onResultStoreAck(resultAckID string, resp framing.Message) {
	dr, ok := b.delayedResults[resultAckID]
	if !ok {
		return
	}
	delete(b.delayedResults, resultAckID)

	dbID, _ := resp.Field("db_id")
	fields := map[string]any{
		"ack_id": dr.producerAckID,
		"result": dr.resultStatus,
		"db_id":  dbID,
	}
	if dr.resultStatus == "crash" {
		fields["crashdetail"] = dr.crashDetail
		fields["crc32"] = dr.crc32
		fields["tag"] = dr.tag
	}
	if dr.producer != nil {
		_ = dr.producer.send(framing.Message{Verb: framing.VerbAckMsg, Fields: fields})
	}
}

func (b *Broker) handleTestResult(p *peer, msg framing.Message) {
	// Broker-side only; result-store-facing sends originate from
	// tryMatchResultStore. A stray inbound test_result is ignored.
}

// handleAckMsg discharges the matching unanswered entry: cancel its
// timer, invoke its callback, and forget it.
func (b *Broker) handleAckMsg(p *peer, msg framing.Message) {
	ackVal, _ := msg.Field("ack_id")
	ackID, _ := ackVal.(string)
	entry, ok := b.unanswered[ackID]
	if !ok {
		return
	}
	delete(b.unanswered, ackID)
	entry.timer.Stop()
	entry.onAck(msg)
}
