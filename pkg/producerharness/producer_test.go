package producerharness

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnagy/bm2-core/pkg/framing"
	"github.com/bnagy/bm2-core/pkg/generators"
)

func TestRunDrivesGeneratorToExhaustion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	gen := generators.NewSliceGenerator([][]byte{[]byte("a"), []byte("b")})
	p := New(Config{Queue: "default"}, gen, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(client) }()

	r := framing.NewReader(server)

	// client_startup
	msg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbClientStartup, msg.Verb)

	// startup ack triggers the first submission
	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"startup_ack": true},
	}))

	msg, err = r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbNewTestCase, msg.Verb)
	id1, _ := msg.Field("id")
	assert.Equal(t, "1", id1)

	// delivery-receipt ack only updates counters
	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"ack_id": "1"},
	}))

	// result ack for the first test -> second submission
	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"ack_id": "1", "result": "success"},
	}))

	msg, err = r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, framing.VerbNewTestCase, msg.Verb)
	id2, _ := msg.Field("id")
	assert.Equal(t, "2", id2)

	// result ack for the second test, generator now exhausted -> Run returns
	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"result": "success"},
	}))

	require.NoError(t, <-errCh)

	counters := p.Counters()
	assert.Equal(t, 2, counters.Submitted)
	assert.Equal(t, 1, counters.Delivered)
	assert.Equal(t, 2, counters.Results)
	assert.Equal(t, 0, counters.Crashes)
}

func TestRunCountsCrashResults(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	gen := generators.NewSliceGenerator([][]byte{[]byte("a")})
	p := New(Config{Queue: "default"}, gen, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(client) }()

	r := framing.NewReader(server)
	_, err := r.ReadMessage() // client_startup
	require.NoError(t, err)

	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"startup_ack": true},
	}))
	_, err = r.ReadMessage() // new_test_case
	require.NoError(t, err)

	require.NoError(t, framing.WriteTo(server, framing.Message{
		Verb:   framing.VerbAckMsg,
		Fields: map[string]any{"result": "crash"},
	}))

	require.NoError(t, <-errCh)
	assert.Equal(t, 1, p.Counters().Crashes)
}
