package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer              TxType = 0x01 // Native value transfer
	TxTypeCreateMint            TxType = 0x02 // Create a token mint owned by the sender
	TxTypeMintTo                TxType = 0x03 // Mint units of a sender-controlled mint
	TxTypeInitializeMarketplace TxType = 0x10
	TxTypeList                  TxType = 0x11
	TxTypePurchase              TxType = 0x12
	TxTypeCancel                TxType = 0x13
)

var ErrMissingSignature = errors.New("transaction: missing signature")

// String returns a human readable label for the transaction type.
func (t TxType) String() string {
	switch t {
	case TxTypeTransfer:
		return "Transfer"
	case TxTypeCreateMint:
		return "CreateMint"
	case TxTypeMintTo:
		return "MintTo"
	case TxTypeInitializeMarketplace:
		return "InitializeMarketplace"
	case TxTypeList:
		return "List"
	case TxTypePurchase:
		return "Purchase"
	case TxTypeCancel:
		return "Cancel"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

// Transaction is a signed instruction for the state processor. Data carries
// the JSON encoded payload matching Type.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

type signingPayload struct {
	ChainID uint64
	Type    uint8
	Nonce   uint64
	Data    []byte
}

// Hash returns the blake3 digest of the RLP encoded signing payload.
func (tx *Transaction) Hash() ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes(signingPayload{
		ChainID: tx.ChainID,
		Type:    uint8(tx.Type),
		Nonce:   tx.Nonce,
		Data:    tx.Data,
	})
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (tx *Transaction) From() ([20]byte, error) {
	var out [20]byte
	if tx.from != nil {
		copy(out[:], tx.from)
		return out, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return out, ErrMissingSignature
	}
	if tx.V.Uint64() < 27 {
		return out, fmt.Errorf("transaction: invalid recovery id %s", tx.V)
	}
	hash, err := tx.Hash()
	if err != nil {
		return out, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 {
		return out, fmt.Errorf("transaction: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return out, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	copy(out[:], tx.from)
	return out, nil
}

// TransferPayload moves native value to another account.
type TransferPayload struct {
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

// CreateMintPayload creates a mint whose authority is the sender. The mint
// address is derived from the sender and the transaction nonce.
type CreateMintPayload struct {
	Decimals uint8 `json:"decimals"`
}

// MintToPayload issues units of a sender-controlled mint to an owner's
// associated holding account.
type MintToPayload struct {
	Mint   common.Address `json:"mint"`
	Owner  common.Address `json:"owner"`
	Amount uint64         `json:"amount"`
}

// InitializeMarketplacePayload registers a marketplace under Name.
type InitializeMarketplacePayload struct {
	Name   string `json:"name"`
	FeeBps uint16 `json:"feeBps"`
}

// ListPayload escrows one unit of Asset under the named marketplace.
type ListPayload struct {
	Marketplace string         `json:"marketplace"`
	Asset       common.Address `json:"asset"`
	Price       uint64         `json:"price"`
}

// PurchasePayload settles the listing of Asset. Price must equal the listed
// price.
type PurchasePayload struct {
	Marketplace string         `json:"marketplace"`
	Asset       common.Address `json:"asset"`
	Price       uint64         `json:"price"`
}

// CancelPayload withdraws the sender's listing of Asset.
type CancelPayload struct {
	Marketplace string         `json:"marketplace"`
	Asset       common.Address `json:"asset"`
}

// NewTransaction builds an unsigned transaction with a JSON encoded payload.
func NewTransaction(chainID uint64, txType TxType, nonce uint64, payload interface{}) (*Transaction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return &Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Data: data}, nil
}

// DecodePayload unmarshals the transaction data into dst.
func (tx *Transaction) DecodePayload(dst interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("transaction %s: empty payload", tx.Type)
	}
	if err := json.Unmarshal(tx.Data, dst); err != nil {
		return fmt.Errorf("transaction %s: decode payload: %w", tx.Type, err)
	}
	return nil
}

// Receipt summarises a successfully applied transaction.
type Receipt struct {
	TxHash [32]byte `json:"txHash"`
	Type   TxType   `json:"type"`
	From   [20]byte `json:"from"`
	Events []Event  `json:"events"`
}
