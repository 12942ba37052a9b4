// Package hdwallet derives keys from a BIP-39 mnemonic along BIP-44 paths.
package hdwallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const (
	CoinTypeBTC uint32 = 0
	CoinTypeETH uint32 = 60
)

type HDWallet struct {
	masterKey *hdkeychain.ExtendedKey
	btcParams *chaincfg.Params
}

func New(mnemonic string, netParams *chaincfg.Params) (*HDWallet, error) {
	if mnemonic == "" {
		return nil, errors.New("mnemonic cannot be empty")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	extendKey, err := hdkeychain.NewMaster(seed, netParams)
	if err != nil {
		return nil, err
	}
	return &HDWallet{
		masterKey: extendKey,
		btcParams: netParams,
	}, nil
}

// derive walks m / 44' / coin' / 0' / 0 / index.
func (w *HDWallet) derive(coinType uint32, index uint32) (*btcec.PrivateKey, error) {
	path := []uint32{
		44 + hdkeychain.HardenedKeyStart,
		coinType + hdkeychain.HardenedKeyStart,
		0 + hdkeychain.HardenedKeyStart,
		0,
		index,
	}
	key := w.masterKey
	var err error
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}
	return key.ECPrivKey()
}

// DeriveAddress returns the address and hex private key for coinType at index.
func (w *HDWallet) DeriveAddress(coinType uint32, index uint32) (string, string, error) {
	if coinType != CoinTypeBTC && coinType != CoinTypeETH {
		return "", "", errors.New("invalid coin type")
	}
	privKey, err := w.derive(coinType, index)
	if err != nil {
		return "", "", err
	}
	address, err := w.GetAddress(coinType, privKey)
	if err != nil {
		return "", "", err
	}
	return address, fmt.Sprintf("%x", privKey.Serialize()), nil
}

// DeriveEthKey returns the secp256k1 key used to sign EVM transactions.
func (w *HDWallet) DeriveEthKey(index uint32) (*ecdsa.PrivateKey, error) {
	privKey, err := w.derive(CoinTypeETH, index)
	if err != nil {
		return nil, err
	}
	return privKey.ToECDSA(), nil
}

func (w *HDWallet) GetAddress(coinType uint32, privKey *btcec.PrivateKey) (string, error) {
	switch coinType {
	case CoinTypeBTC: // p2wpkh
		publicKeyHash, err := btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(privKey.PubKey().SerializeCompressed()),
			w.btcParams,
		)
		if err != nil {
			return "", err
		}
		return publicKeyHash.EncodeAddress(), nil
	case CoinTypeETH:
		return crypto.PubkeyToAddress(privKey.ToECDSA().PublicKey).Hex(), nil
	default:
		return "", errors.New("invalid coin type")
	}
}
