package broker

import (
	"time"

	"github.com/bnagy/bm2-core/pkg/framing"
)

// armTimeout registers an outbound message awaiting an ack_msg. On
// expiry, the payload is either resent directly to peer (queueName
// empty) or pushed back onto the named queue's pending list — the two
// resend/requeue semantics spec.md §4.7 distinguishes by whether a
// queue was supplied.
func (b *Broker) armTimeout(ackID string, p *peer, queueName string, payload framing.Message, onAck func(framing.Message)) {
	entry := &unansweredEntry{
		ackID:     ackID,
		peer:      p,
		queueName: queueName,
		payload:   payload,
		onAck:     onAck,
	}
	entry.timer = time.AfterFunc(b.cfg.PollInterval, func() {
		b.events <- event{kind: eventTimeout, ackID: ackID}
	})
	b.unanswered[ackID] = entry
}

// handleTimeout runs in the event loop: it looks up the unanswered
// entry (it may already have been discharged by a race-free ack that
// arrived just before the timer fired reached the channel) and either
// resends to the same peer or requeues onto the named queue.
func (b *Broker) handleTimeout(ackID string) {
	entry, ok := b.unanswered[ackID]
	if !ok {
		return
	}
	delete(b.unanswered, ackID)

	if entry.queueName == "" {
		if entry.peer != nil {
			b.log.WithField("ack_id", ackID).Debug("broker: resending on timeout")
			b.armTimeout(ackID, entry.peer, "", entry.payload, entry.onAck)
			_ = entry.peer.send(entry.payload)
		}
		return
	}

	b.log.WithField("ack_id", ackID).Debug("broker: requeueing on timeout")
	q := b.queue(entry.queueName)
	q.pending = append([]pendingTest{{producerAckID: ackID, msg: entry.payload}}, q.pending...)
}
