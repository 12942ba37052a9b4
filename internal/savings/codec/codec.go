// Package codec turns chain log wire data into normalized addresses and
// integer amounts.
package codec

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/samiecode/babylon/internal/savings/domain"
	"github.com/samiecode/babylon/pkg/xerr"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

var (
	addressPattern = regexp.MustCompile(`^0x[a-f0-9]{40}$`)
	hexDigits      = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// DecodeAddress extracts the rightmost 20 bytes of a 32-byte topic.
func DecodeAddress(topic string) string {
	h := strings.ToLower(strip0x(strings.TrimSpace(topic)))
	if len(h) >= 40 {
		return "0x" + h[len(h)-40:]
	}
	return "0x" + strings.Repeat("0", 40-len(h)) + h
}

// HexToBigInt parses log data as a non-negative integer. Empty input is zero.
func HexToBigInt(data string) (*big.Int, error) {
	h := strip0x(strings.TrimSpace(data))
	if h == "" {
		return new(big.Int), nil
	}
	if !hexDigits.MatchString(h) {
		return nil, xerr.Parse("data", fmt.Errorf("invalid hex %q", data))
	}
	v, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return nil, xerr.Parse("data", fmt.Errorf("invalid hex %q", data))
	}
	return v, nil
}

// NormalizeAddress lower-cases addr and checks it is a 20-byte hex address.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !addressPattern.MatchString(a) {
		return "", xerr.Validation("walletAddress", "invalid wallet address %q", addr)
	}
	return a, nil
}

// IsAddress reports whether addr normalizes cleanly.
func IsAddress(addr string) bool {
	_, err := NormalizeAddress(addr)
	return err == nil
}

// SaveAmount is floor(amount * bps / 10000). Non-positive bps yields zero.
func SaveAmount(amountRaw *big.Int, bps int) *big.Int {
	if bps <= 0 || amountRaw == nil || amountRaw.Sign() <= 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(amountRaw, big.NewInt(int64(bps)))
	return v.Quo(v, big.NewInt(domain.BpsDenominator))
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
