package wallet

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// TxInput fully describes an output being spent: the outpoint, its value and
// previous output script for sighash computation, and what is needed to sign
// it (an absolute derivation path for key-path inputs, plus the witness
// script for script-hash ones).
type TxInput struct {
	TxID           string
	VOut           uint32
	Value          uint64
	PrevScript     []byte
	Script         ScriptType
	DerivationPath string
	WitnessScript  []byte
}

func (in TxInput) outpoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(in.TxID)
	if err != nil {
		return nil, fmt.Errorf("invalid input txid '%s': %w", in.TxID, err)
	}
	return wire.NewOutPoint(hash, in.VOut), nil
}

// TxOutput is an address/amount pair of the transaction being built.
type TxOutput struct {
	Address string
	Value   uint64
}

// CreateTxOpts is the struct given to CreateTx.
type CreateTxOpts struct {
	Inputs  []TxInput
	Outputs []TxOutput
	Network *chaincfg.Params
}

func (o CreateTxOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	if len(o.Inputs) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.Outputs) <= 0 {
		return ErrEmptyOutputs
	}
	for _, in := range o.Inputs {
		if _, err := in.outpoint(); err != nil {
			return err
		}
	}
	for _, out := range o.Outputs {
		if out.Value <= 0 {
			return ErrInvalidAmount
		}
		addr, err := btcutil.DecodeAddress(out.Address, o.Network)
		if err != nil || !addr.IsForNet(o.Network) {
			return ErrInvalidAddress
		}
	}
	return nil
}

// CreateTx assembles the unsigned version-2 transaction spending the given
// inputs to the given outputs. Input order is preserved so that the caller's
// input descriptors keep matching by position.
func CreateTx(opts CreateTxOpts) (*wire.MsgTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	for _, in := range opts.Inputs {
		outpoint, _ := in.outpoint()
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	}
	for _, out := range opts.Outputs {
		addr, _ := btcutil.DecodeAddress(out.Address, opts.Network)
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, ErrInvalidAddress
		}
		tx.AddTxOut(wire.NewTxOut(int64(out.Value), script))
	}
	return tx, nil
}

// PartialInput mirrors a transaction input inside the partial envelope: the
// outpoint and value let each party recognize and sighash it, while the
// signatures map collects the contribution of every co-signer, keyed by the
// hex compressed public key.
type PartialInput struct {
	TxID          string            `json:"txid"`
	VOut          uint32            `json:"vout"`
	Value         uint64            `json:"value"`
	PrevScript    string            `json:"prev_script"`
	Script        ScriptType        `json:"script_type"`
	WitnessScript string            `json:"witness_script,omitempty"`
	Signatures    map[string]string `json:"signatures,omitempty"`
}

// PartialTransaction is the envelope handed between co-signing parties. The
// unsigned transaction travels as hex alongside the per-input signing state,
// and the whole envelope serializes to base64 for transport.
type PartialTransaction struct {
	TxHex  string         `json:"tx"`
	Inputs []PartialInput `json:"inputs"`
}

// NewPartialTransaction wraps an unsigned transaction and its input
// descriptors into a fresh envelope with no signatures.
func NewPartialTransaction(tx *wire.MsgTx, inputs []TxInput) (*PartialTransaction, error) {
	if tx == nil || len(tx.TxIn) <= 0 {
		return nil, ErrEmptyInputs
	}
	if len(inputs) != len(tx.TxIn) {
		return nil, ErrUnrecognizedInput
	}

	txHex, err := txToHex(tx)
	if err != nil {
		return nil, err
	}

	partialInputs := make([]PartialInput, 0, len(inputs))
	for _, in := range inputs {
		partialInputs = append(partialInputs, PartialInput{
			TxID:          in.TxID,
			VOut:          in.VOut,
			Value:         in.Value,
			PrevScript:    hex.EncodeToString(in.PrevScript),
			Script:        in.Script,
			WitnessScript: hex.EncodeToString(in.WitnessScript),
			Signatures:    map[string]string{},
		})
	}
	return &PartialTransaction{TxHex: txHex, Inputs: partialInputs}, nil
}

// Encode serializes the envelope to its base64 transport format.
func (p *PartialTransaction) Encode() (string, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodePartialTransaction parses a base64 envelope, checking that the
// embedded transaction deserializes and that every transaction input has a
// matching descriptor.
func DecodePartialTransaction(encoded string) (*PartialTransaction, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedPartialTransaction
	}
	partial := &PartialTransaction{}
	if err := json.Unmarshal(buf, partial); err != nil {
		return nil, ErrMalformedPartialTransaction
	}

	tx, err := txFromHex(partial.TxHex)
	if err != nil {
		return nil, ErrMalformedPartialTransaction
	}
	if len(partial.Inputs) != len(tx.TxIn) {
		return nil, ErrMalformedPartialTransaction
	}
	for i, in := range partial.Inputs {
		hash, err := chainhash.NewHashFromStr(in.TxID)
		if err != nil {
			return nil, ErrMalformedPartialTransaction
		}
		outpoint := tx.TxIn[i].PreviousOutPoint
		if outpoint.Hash != *hash || outpoint.Index != in.VOut {
			return nil, ErrMalformedPartialTransaction
		}
	}
	return partial, nil
}

func (p *PartialTransaction) tx() (*wire.MsgTx, error) {
	return txFromHex(p.TxHex)
}

func txToHex(tx *wire.MsgTx) (string, error) {
	buf := &bytes.Buffer{}
	if err := tx.Serialize(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func txFromHex(txHex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	return tx, nil
}
