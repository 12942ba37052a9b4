package vault

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/samiecode/babylon/pkg/hdwallet"
)

var ErrNoRelayerKey = errors.New("vault: relayer_private_key or relayer_mnemonic is required")

// LoadRelayerKey prefers an explicit hex key (0x optional) and falls back to
// deriving m/44'/60'/0'/0/index from the mnemonic.
func LoadRelayerKey(privateKey, mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	if pk := strings.TrimSpace(privateKey); pk != "" {
		pk = strings.TrimPrefix(strings.TrimPrefix(pk, "0x"), "0X")
		key, err := crypto.HexToECDSA(pk)
		if err != nil {
			return nil, fmt.Errorf("vault: parse relayer key: %w", err)
		}
		return key, nil
	}
	if m := strings.TrimSpace(mnemonic); m != "" {
		w, err := hdwallet.New(m, &chaincfg.MainNetParams)
		if err != nil {
			return nil, fmt.Errorf("vault: relayer mnemonic: %w", err)
		}
		return w.DeriveEthKey(index)
	}
	return nil, ErrNoRelayerKey
}
