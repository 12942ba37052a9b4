package notify

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (r *recorder) Publish(_ context.Context, subject string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.msgs == nil {
		r.msgs = make(map[string][][]byte)
	}
	r.msgs[subject] = append(r.msgs[subject], payload)
	return nil
}

func (r *recorder) Close() {}

func TestEmitter_Encodes(t *testing.T) {
	rec := &recorder{}
	e := NewEmitter(rec)
	e.Emit(context.Background(), SubjectDepositFunded, DepositSettled{TransactionID: "t1", AmountWei: "5", VaultTxHash: "0xabc"})

	require.Len(t, rec.msgs[SubjectDepositFunded], 1)
	var got DepositSettled
	require.NoError(t, json.Unmarshal(rec.msgs[SubjectDepositFunded][0], &got))
	assert.Equal(t, "t1", got.TransactionID)
	assert.Equal(t, "0xabc", got.VaultTxHash)
}

func TestEmitter_SwallowsErrors(t *testing.T) {
	e := NewEmitter(&recorder{err: errors.New("down")})
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), SubjectTransferDetected, TransferDetected{})
		e.Emit(context.Background(), SubjectTransferDetected, func() {})
	})

	var nilEmitter *Emitter
	assert.NotPanics(t, func() { nilEmitter.Emit(context.Background(), "x", 1) })
	NewEmitter(nil).Emit(context.Background(), "x", 1)
}

func TestNatsPublisher(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	pub, err := NewNatsPublisher(url, nats.Name("savings-test"))
	require.NoError(t, err)
	defer pub.Close()

	sub, err := pub.nc.SubscribeSync(SubjectWithdrawalRequested)
	require.NoError(t, err)

	NewEmitter(pub).Emit(context.Background(), SubjectWithdrawalRequested, WithdrawalChanged{RequestID: "r1"})
	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"requestId":"r1"`)
}
