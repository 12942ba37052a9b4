package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/pkg/xerr"
)

func TestDecodeWebhook(t *testing.T) {
	body := []byte(`{
	  "data": [
	    {
	      "blockNumber": "0x1a",
	      "logs": [
	        {
	          "address": "0xTOKEN00000000000000000000000000000000001",
	          "data": "0x01",
	          "topics": ["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", "0x01", "0x02"],
	          "transactionHash": "0xHASH",
	          "logIndex": "0x3",
	          "transactionIndex": 7,
	          "removed": false
	        },
	        {"address": "0x1", "topics": ["0x1"]},
	        {"address": "0x1", "transactionHash": "0x2"},
	        {"transactionHash": "0x2", "topics": []},
	        {"address": "0x1", "transactionHash": "0x2", "topics": [null]}
	      ]
	    },
	    {"blockNumber": 27},
	    "not an object",
	    {"blockNumber": "28", "logs": [{"address": "0x5", "transactionHash": "0x6", "topics": []}]}
	  ]
	}`)

	got, err := DecodeWebhook(body)
	require.NoError(t, err)
	require.Len(t, got.Receipts, 3)
	assert.Len(t, got.Skipped, 5)
	for _, e := range got.Skipped {
		var pe *xerr.ParseError
		assert.ErrorAs(t, e, &pe)
	}

	first := got.Receipts[0]
	assert.Equal(t, int64(26), first.BlockNumber)
	require.Len(t, first.Logs, 1)
	l := first.Logs[0]
	assert.Equal(t, "0xhash", l.TransactionHash)
	assert.Equal(t, "0xtoken00000000000000000000000000000000001", l.Address)
	require.NotNil(t, l.LogIndex)
	assert.Equal(t, int64(3), *l.LogIndex)
	require.NotNil(t, l.TransactionIndex)
	assert.Equal(t, int64(7), *l.TransactionIndex)

	assert.Equal(t, int64(27), got.Receipts[1].BlockNumber)
	assert.Empty(t, got.Receipts[1].Logs)
	assert.Equal(t, int64(28), got.Receipts[2].BlockNumber)
	assert.Nil(t, got.Receipts[2].Logs[0].LogIndex)
	assert.Equal(t, 2, got.LogCount())
}

func TestDecodeWebhook_Unparseable(t *testing.T) {
	for _, body := range []string{"", "{", "[1,2]", `{"data": 5}`} {
		_, err := DecodeWebhook([]byte(body))
		var pe *xerr.ParseError
		assert.ErrorAs(t, err, &pe, body)
	}
}

func TestDecodeWebhook_Empty(t *testing.T) {
	for _, body := range []string{`{}`, `{"data": []}`, `{"data": null}`} {
		got, err := DecodeWebhook([]byte(body))
		require.NoError(t, err)
		assert.Empty(t, got.Receipts)
		assert.Empty(t, got.Skipped)
	}
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{`12`, 12, false},
		{`"12"`, 12, false},
		{`"0xff"`, 255, false},
		{`"0x"`, 0, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"zz"`, 0, true},
		{`1.5`, 0, true},
		{`-3`, 0, true},
		{`"0x-3"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var q Quantity
			err := q.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(q))
		})
	}
}
