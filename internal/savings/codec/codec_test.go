package codec

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiecode/babylon/pkg/xerr"
)

func TestDecodeAddress(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"padded topic", "0x000000000000000000000000AbCdEf0123456789abcdef0123456789ABCDEF01", "0xabcdef0123456789abcdef0123456789abcdef01"},
		{"no prefix", "000000000000000000000000abcdef0123456789abcdef0123456789abcdef01", "0xabcdef0123456789abcdef0123456789abcdef01"},
		{"bare address", "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", "0xabcdef0123456789abcdef0123456789abcdef01"},
		{"short", "0x1", "0x0000000000000000000000000000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeAddress(tt.topic))
		})
	}
}

func TestHexToBigInt(t *testing.T) {
	twoEth, _ := new(big.Int).SetString("2000000000000000000", 10)
	tests := []struct {
		name    string
		in      string
		want    *big.Int
		wantErr bool
	}{
		{"empty", "", big.NewInt(0), false},
		{"bare prefix", "0x", big.NewInt(0), false},
		{"upper prefix", "0X0f", big.NewInt(15), false},
		{"word", "0x0000000000000000000000000000000000000000000000001bc16d674ec80000", twoEth, false},
		{"no prefix", "ff", big.NewInt(255), false},
		{"garbage", "0xzz", nil, true},
		{"negative", "-ff", nil, true},
		{"prefixed negative", "0x-ff", nil, true},
		{"plus sign", "+ff", nil, true},
		{"inner space", "0xf f", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HexToBigInt(tt.in)
			if tt.wantErr {
				var pe *xerr.ParseError
				assert.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(got), "got %s", got)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0xABCDEF0123456789ABCDEF0123456789ABCDEF01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	for _, bad := range []string{"", "0x123", "abcdef0123456789abcdef0123456789abcdef01", "0xg" + strings.Repeat("0", 39)} {
		_, err := NormalizeAddress(bad)
		assert.True(t, xerr.IsValidation(err), bad)
	}
	assert.False(t, IsAddress("nope"))
}

func TestSaveAmount(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	twoEth, _ := new(big.Int).SetString("2000000000000000000", 10)

	tests := []struct {
		name   string
		amount *big.Int
		bps    int
		want   string
	}{
		{"fifteen percent of one", oneEth, 1500, "150000000000000000"},
		{"fifteen percent of two", twoEth, 1500, "300000000000000000"},
		{"floors", big.NewInt(9999), 1, "0"},
		{"floors above one", big.NewInt(19999), 1, "1"},
		{"full", big.NewInt(12345), 10000, "12345"},
		{"zero bps", oneEth, 0, "0"},
		{"negative bps", oneEth, -5, "0"},
		{"nil amount", nil, 100, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SaveAmount(tt.amount, tt.bps)
			assert.Equal(t, tt.want, got.String())
			if tt.amount != nil {
				assert.LessOrEqual(t, got.Cmp(tt.amount), 0)
			}
		})
	}
}
