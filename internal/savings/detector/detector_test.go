package detector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/internal/savings/codec"
	"github.com/samiecode/babylon/internal/savings/domain"
)

const (
	watched = "0xabc0000000000000000000000000000000000001"
	other   = "0xdef0000000000000000000000000000000000002"
	sender  = "0x1110000000000000000000000000000000000003"
	token   = "0x2220000000000000000000000000000000000004"
)

type mapWatch struct {
	m   map[string]domain.WatchedWallet
	err error
}

func (w mapWatch) Lookup(_ context.Context, addr string) (domain.WatchedWallet, bool, error) {
	if w.err != nil {
		return domain.WatchedWallet{}, false, w.err
	}
	v, ok := w.m[strings.ToLower(addr)]
	return v, ok, nil
}

func topicFor(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

func transferLog(to, data string) codec.Log {
	idx := int64(4)
	return codec.Log{
		Address:         token,
		Data:            data,
		Topics:          []string{strings.ToUpper(codec.TransferTopic[:10]) + codec.TransferTopic[10:], topicFor(sender), topicFor(to)},
		TransactionHash: "0xfeed",
		LogIndex:        &idx,
	}
}

func newDetector(bps int) *Detector {
	return New(mapWatch{m: map[string]domain.WatchedWallet{
		watched: {WalletID: "w1", Address: watched, UserID: "u1", SavingPercentBps: bps},
	}}, "")
}

func TestDetect_Matches(t *testing.T) {
	d := newDetector(1500)
	receipts := []codec.Receipt{
		{BlockNumber: 10},
		{BlockNumber: 11, Logs: []codec.Log{
			transferLog(watched, "0x1bc16d674ec80000"), // 2e18
			transferLog(other, "0x01"),
			{Address: token, Topics: []string{"0xdeadbeef"}, TransactionHash: "0x1"},
		}},
	}

	got, err := d.Detect(context.Background(), receipts)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "w1", c.Wallet.WalletID)
	assert.Equal(t, sender, c.From)
	assert.Equal(t, watched, c.To)
	assert.Equal(t, token, c.Token)
	assert.Equal(t, "2000000000000000000", c.AmountRaw.String())
	assert.Equal(t, "300000000000000000", c.SaveAmountWei.String())
	assert.Equal(t, int64(11), c.BlockNumber)
	require.NotNil(t, c.LogIndex)
	assert.Equal(t, int64(4), *c.LogIndex)
}

func TestDetect_SkipsBadLogs(t *testing.T) {
	d := newDetector(100)
	short := transferLog(watched, "0x01")
	short.Topics = short.Topics[:2]
	badData := transferLog(watched, "0xnothex")

	got, err := d.Detect(context.Background(), []codec.Receipt{{Logs: []codec.Log{short, badData, transferLog(watched, "0x2710")}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100", got[0].SaveAmountWei.String())
}

func TestDetect_ZeroBps(t *testing.T) {
	got, err := newDetector(0).Detect(context.Background(), []codec.Receipt{{Logs: []codec.Log{transferLog(watched, "0xff")}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].SaveAmountWei.Sign())
}

func TestDetect_CustomSignature(t *testing.T) {
	d := New(mapWatch{m: map[string]domain.WatchedWallet{watched: {WalletID: "w1"}}}, "0xDEADBEEF")
	assert.Equal(t, "0xdeadbeef", d.Topic())

	l := transferLog(watched, "0x01")
	l.Topics[0] = "0xdeadbeef"
	got, err := d.Detect(context.Background(), []codec.Receipt{{Logs: []codec.Log{l, transferLog(watched, "0x01")}}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDetect_WatchListFailure(t *testing.T) {
	d := New(mapWatch{err: errors.New("db down")}, "")
	_, err := d.Detect(context.Background(), []codec.Receipt{{Logs: []codec.Log{transferLog(watched, "0x01")}}})
	assert.Error(t, err)
}
