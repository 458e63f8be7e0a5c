package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	delivered uint64
	mdErr     error

	acked  bool
	termed bool
	nakIn  time.Duration
	naked  bool
}

func (m *fakeMsg) Ack() error {
	m.acked = true
	return nil
}

func (m *fakeMsg) Term() error {
	m.termed = true
	return nil
}

func (m *fakeMsg) NakWithDelay(d time.Duration) error {
	m.naked = true
	m.nakIn = d
	return nil
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	if m.mdErr != nil {
		return nil, m.mdErr
	}
	return &jetstream.MsgMetadata{NumDelivered: m.delivered}, nil
}

func newTestSource() *Source {
	cfg := SourceConfig{}
	cfg.defaults()
	cfg.RedeliverBase = time.Second
	cfg.RedeliverMax = 10 * time.Second
	return &Source{cfg: cfg}
}

func TestSettle(t *testing.T) {
	s := newTestSource()

	ack := &fakeMsg{}
	require.NoError(t, s.settle(ack, VerdictAck))
	assert.True(t, ack.acked)

	term := &fakeMsg{}
	require.NoError(t, s.settle(term, VerdictTerminate))
	assert.True(t, term.termed)

	nak := &fakeMsg{delivered: 2}
	require.NoError(t, s.settle(nak, VerdictRedeliver))
	assert.True(t, nak.naked)
	assert.Equal(t, 2*time.Second, nak.nakIn)
}

func TestSettle_RedeliverWithoutMetadata(t *testing.T) {
	s := newTestSource()
	nak := &fakeMsg{mdErr: errors.New("not a jetstream message")}

	require.NoError(t, s.settle(nak, VerdictRedeliver))
	assert.Equal(t, time.Second, nak.nakIn)
}

func TestRedeliveryDelay(t *testing.T) {
	tests := []struct {
		delivered uint64
		expect    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{20, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := RedeliveryDelay(time.Second, 10*time.Second, tt.delivered); got != tt.expect {
			t.Errorf("RedeliveryDelay(%d) = %v, want %v", tt.delivered, got, tt.expect)
		}
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "ack", VerdictAck.String())
	assert.Equal(t, "redeliver", VerdictRedeliver.String())
	assert.Equal(t, "terminate", VerdictTerminate.String())
}
