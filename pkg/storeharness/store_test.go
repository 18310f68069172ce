package storeharness

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnagy/bm2-core/pkg/framing"
)

func TestHandleTestResultAcksWithDBID(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := New(Config{}, func(msg framing.Message) (int64, error) {
		status, _ := msg.Field("status")
		assert.Equal(t, "crash", status)
		return 42, nil
	}, nil)

	done := make(chan struct{})
	go func() {
		h.handleTestResult(server, framing.Message{
			Verb: framing.VerbTestResult,
			Fields: map[string]any{
				"ack_id": "ack-1",
				"status": "crash",
				"detail": "SIGSEGV",
			},
		})
		close(done)
	}()

	r := framing.NewReader(client)
	msg, err := r.ReadMessage()
	require.NoError(t, err)
	<-done

	assert.Equal(t, framing.VerbAckMsg, msg.Verb)
	ackID, _ := msg.Field("ack_id")
	assert.Equal(t, "ack-1", ackID)
	dbID, _ := msg.Field("db_id")
	assert.Equal(t, int64(42), dbID)
}

func TestHandleTestResultPersistFailureSendsNoAck(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	h := New(Config{}, func(msg framing.Message) (int64, error) {
		return 0, errors.New("disk full")
	}, nil)

	done := make(chan struct{})
	go func() {
		h.handleTestResult(server, framing.Message{
			Verb:   framing.VerbTestResult,
			Fields: map[string]any{"ack_id": "ack-2", "status": "success"},
		})
		close(done)
	}()

	<-done
	_, err := framing.NewReader(client).ReadMessage()
	assert.Error(t, err, "a failed persist must send no ack at all")
}

func TestHandleTestResultPersistPanicSendsNoAck(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	h := New(Config{}, func(msg framing.Message) (int64, error) {
		panic("boom")
	}, nil)

	done := make(chan struct{})
	go func() {
		h.handleTestResult(server, framing.Message{
			Verb:   framing.VerbTestResult,
			Fields: map[string]any{"ack_id": "ack-3", "status": "success"},
		})
		close(done)
	}()

	<-done
	_, err := framing.NewReader(client).ReadMessage()
	assert.Error(t, err, "a panicking persist handler must send no ack at all")
}

func TestRunAnnouncesDBReadyThenPersistsTestResult(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := New(Config{}, func(msg framing.Message) (int64, error) {
		return 7, nil
	}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(client) }()

	r := framing.NewReader(server)
	msg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbDBReady, msg.Verb)

	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbTestResult,
		Fields: map[string]any{"ack_id": "ack-4", "status": "success"},
	}))

	ackMsg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbAckMsg, ackMsg.Verb)
	dbID, _ := ackMsg.Field("db_id")
	assert.Equal(t, int64(7), dbID)

	// Harness loops back to db_ready after the ack.
	msg, err = r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbDBReady, msg.Verb)

	require.NoError(t, server.Close())
	<-errCh
}
