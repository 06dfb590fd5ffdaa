package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"txbatcher/internal/fee"
	"txbatcher/internal/runerr"
)

// Credential is the signing capability of the sending account
type Credential struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// ParseCredential reads a hex private key, with or without 0x prefix
func ParseCredential(keyHex string) (Credential, error) {
	keyHex = strings.TrimSpace(keyHex)
	keyHex = strings.TrimPrefix(strings.TrimPrefix(keyHex, "0x"), "0X")
	if len(keyHex) != 64 {
		return Credential{}, fmt.Errorf("%w: private key must be 64 hex characters, got %d", runerr.ErrConfig, len(keyHex))
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: invalid private key: %v", runerr.ErrConfig, err)
	}
	return NewCredential(key), nil
}

// NewCredential wraps an already loaded key
func NewCredential(key *ecdsa.PrivateKey) Credential {
	if key == nil {
		return Credential{}
	}
	return Credential{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the account address of the credential
func (c Credential) Address() common.Address {
	return c.address
}

// Valid returns true if the credential holds a key
func (c Credential) Valid() bool {
	return c.key != nil
}

// Draft holds the fields of one transaction before signing
type Draft struct {
	From     common.Address
	To       common.Address
	Nonce    uint64
	GasLimit uint64
	Fee      fee.Fields
	ChainID  *big.Int
	Value    *big.Int
	Data     []byte
}

// SignedTransaction is a serialized signed transaction ready for
// eth_sendRawTransaction. Index is its position in the batch.
type SignedTransaction struct {
	Index int
	Nonce uint64
	Hash  common.Hash
	Raw   []byte
}

// RawHex returns the 0x-prefixed encoding sent over the wire
func (s SignedTransaction) RawHex() string {
	return hexutil.Encode(s.Raw)
}

// Sign signs a draft. It has no side effects and keeps no state between calls.
func Sign(d Draft, cred Credential) (SignedTransaction, error) {
	if !cred.Valid() {
		return SignedTransaction{}, fmt.Errorf("%w: credential has no key", runerr.ErrSigning)
	}
	if d.From != (common.Address{}) && d.From != cred.address {
		return SignedTransaction{}, fmt.Errorf("%w: draft sender %s does not match credential %s", runerr.ErrSigning, d.From, cred.address)
	}
	if d.ChainID == nil || d.ChainID.Sign() <= 0 {
		return SignedTransaction{}, fmt.Errorf("%w: invalid chain id %v", runerr.ErrSigning, d.ChainID)
	}
	if d.GasLimit == 0 {
		return SignedTransaction{}, fmt.Errorf("%w: gas limit is zero", runerr.ErrSigning)
	}

	value := d.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return SignedTransaction{}, fmt.Errorf("%w: negative value %s", runerr.ErrSigning, value)
	}

	txData, err := buildTxData(d, value)
	if err != nil {
		return SignedTransaction{}, err
	}

	tx, err := types.SignNewTx(cred.key, types.LatestSignerForChainID(d.ChainID), txData)
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("%w: nonce %d: %v", runerr.ErrSigning, d.Nonce, err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("%w: failed to encode nonce %d: %v", runerr.ErrSigning, d.Nonce, err)
	}

	return SignedTransaction{
		Nonce: d.Nonce,
		Hash:  tx.Hash(),
		Raw:   raw,
	}, nil
}

func buildTxData(d Draft, value *big.Int) (types.TxData, error) {
	to := d.To

	if d.Fee.IsLegacy() {
		if d.Fee.GasPrice.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative gas price", runerr.ErrSigning)
		}
		return &types.LegacyTx{
			Nonce:    d.Nonce,
			GasPrice: d.Fee.GasPrice,
			Gas:      d.GasLimit,
			To:       &to,
			Value:    value,
			Data:     d.Data,
		}, nil
	}

	if d.Fee.GasTipCap == nil || d.Fee.GasFeeCap == nil {
		return nil, fmt.Errorf("%w: draft has no fee fields", runerr.ErrSigning)
	}
	if d.Fee.GasTipCap.Sign() < 0 || d.Fee.GasFeeCap.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative fee fields", runerr.ErrSigning)
	}
	if d.Fee.GasFeeCap.Cmp(d.Fee.GasTipCap) < 0 {
		return nil, fmt.Errorf("%w: fee cap %s below tip %s", runerr.ErrSigning, d.Fee.GasFeeCap, d.Fee.GasTipCap)
	}
	return &types.DynamicFeeTx{
		ChainID:   d.ChainID,
		Nonce:     d.Nonce,
		GasTipCap: d.Fee.GasTipCap,
		GasFeeCap: d.Fee.GasFeeCap,
		Gas:       d.GasLimit,
		To:        &to,
		Value:     value,
		Data:      d.Data,
	}, nil
}
