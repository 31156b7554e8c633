package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer       TxType = 0x01 // Token transfer
	TxTypeApprove        TxType = 0x02 // Token allowance
	TxTypeTransferFrom   TxType = 0x03 // Spend an allowance
	TxTypeBurn           TxType = 0x04 // Burn own tokens
	TxTypeAdmin          TxType = 0x05 // Role-gated toggle, executes immediately
	TxTypeConfirm        TxType = 0x06 // Multisig confirmation of a privileged operation
	TxTypeBuy            TxType = 0x07 // Presale purchase
	TxTypeCommitPurchase TxType = 0x08 // Presale anti front-running commitment
	TxTypePresaleClaim   TxType = 0x09 // Claim purchased tokens
	TxTypeReferralClaim  TxType = 0x0a // Claim accrued referral rewards
	TxTypeVestingClaim   TxType = 0x0b // Claim vested tokens
	TxTypeOracleSubmit   TxType = 0x0c // Price feed update
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:       "transfer",
	TxTypeApprove:        "approve",
	TxTypeTransferFrom:   "transferFrom",
	TxTypeBurn:           "burn",
	TxTypeAdmin:          "admin",
	TxTypeConfirm:        "confirm",
	TxTypeBuy:            "buy",
	TxTypeCommitPurchase: "commitPurchase",
	TxTypePresaleClaim:   "presaleClaim",
	TxTypeReferralClaim:  "referralClaim",
	TxTypeVestingClaim:   "vestingClaim",
	TxTypeOracleSubmit:   "oracleSubmit",
}

// String returns the canonical lowerCamel name of the transaction type.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTxType resolves a transaction type from its canonical name.
func ParseTxType(name string) (TxType, bool) {
	for t, n := range txTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// ErrMissingSignature is returned when a transaction is submitted unsigned.
var ErrMissingSignature = errors.New("transaction: missing signature")

// Transaction is the signed envelope submitted by wallets and relayers. Data
// carries the JSON encoded payload for the transaction type.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *common.Address
}

// Hash returns the keccak256 digest of the RLP encoded unsigned fields.
func (tx *Transaction) Hash() (common.Hash, error) {
	txData := struct {
		ChainID uint64
		Type    uint8
		Nonce   uint64
		Data    []byte
	}{tx.ChainID, uint8(tx.Type), tx.Nonce, tx.Data}

	encoded, err := rlp.EncodeToBytes(&txData)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), privKey)
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
func (tx *Transaction) From() (common.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return common.Address{}, ErrMissingSignature
	}
	if tx.V.Uint64() < 27 || len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 {
		return common.Address{}, errors.New("transaction: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(*pubKey)
	tx.from = &addr
	return addr, nil
}
