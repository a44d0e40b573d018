package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignTransactionOpts is the struct given to SignTransaction. Every input of
// the transaction must have a descriptor at the same position.
type SignTransactionOpts struct {
	Tx     *wire.MsgTx
	Inputs []TxInput
}

func (o SignTransactionOpts) validate() error {
	if o.Tx == nil || len(o.Tx.TxIn) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.Inputs) != len(o.Tx.TxIn) {
		return ErrUnrecognizedInput
	}
	for i, in := range o.Inputs {
		outpoint, err := in.outpoint()
		if err != nil {
			return err
		}
		if o.Tx.TxIn[i].PreviousOutPoint != *outpoint {
			return ErrUnrecognizedInput
		}
		if in.Script != P2TR {
			return ErrUnsupportedScriptType
		}
		if _, err := ParseDerivationPath(in.DerivationPath); err != nil {
			return err
		}
	}
	return nil
}

// SignTransaction signs every taproot key-path input of a wholly-owned
// transaction with the keys at the inputs' derivation paths and returns the
// fully signed transaction. Script-hash inputs that need co-signers go
// through the partial envelope flow instead.
func (w *Wallet) SignTransaction(opts SignTransactionOpts) (*wire.MsgTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	tx := opts.Tx.Copy()
	fetcher, err := prevOutFetcher(opts.Inputs)
	if err != nil {
		return nil, err
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range opts.Inputs {
		path, _ := ParseDerivationPath(in.DerivationPath)
		node, err := w.deriveNode(path)
		if err != nil {
			return nil, err
		}
		privateKey, err := node.ECPrivKey()
		if err != nil {
			return nil, ErrDerivationFailed
		}

		// key-path spend: the library applies the BIP-341 tweak before
		// producing the schnorr signature
		witness, err := txscript.TaprootWitnessSignature(
			tx, sigHashes, i, int64(in.Value), in.PrevScript,
			txscript.SigHashDefault, privateKey,
		)
		if err != nil {
			return nil, err
		}
		tx.TxIn[i].Witness = witness
	}
	return tx, nil
}

// SignPartialTransactionOpts is the struct given to SignPartialTransaction.
// InputPaths maps "txid:vout" outpoints to the absolute derivation paths of
// this party's multisig keys; a script-hash input with no entry cannot be
// attributed to this wallet.
type SignPartialTransactionOpts struct {
	Partial    *PartialTransaction
	InputPaths map[string]string
}

func (o SignPartialTransactionOpts) validate() error {
	if o.Partial == nil || len(o.Partial.Inputs) <= 0 {
		return ErrEmptyInputs
	}
	return nil
}

// SignPartialTransaction adds this party's signature to every script-hash
// input of the envelope it holds a key for and returns the updated envelope.
// Signatures already present are preserved, so envelopes can be passed
// around in any order.
func (w *Wallet) SignPartialTransaction(opts SignPartialTransactionOpts) (
	*PartialTransaction, error,
) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	tx, err := opts.Partial.tx()
	if err != nil {
		return nil, ErrMalformedPartialTransaction
	}

	inputs, err := opts.Partial.inputDescriptors()
	if err != nil {
		return nil, err
	}
	fetcher, err := prevOutFetcher(inputs)
	if err != nil {
		return nil, err
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	signed := clonePartial(opts.Partial)
	for i := range signed.Inputs {
		in := &signed.Inputs[i]
		if in.Script != P2WSH2of2 {
			continue
		}

		pathStr, ok := opts.InputPaths[outpointKey(in.TxID, in.VOut)]
		if !ok {
			return nil, ErrUnrecognizedInput
		}
		path, err := ParseDerivationPath(pathStr)
		if err != nil {
			return nil, err
		}
		node, err := w.deriveNode(path)
		if err != nil {
			return nil, err
		}
		privateKey, err := node.ECPrivKey()
		if err != nil {
			return nil, ErrDerivationFailed
		}

		witnessScript, err := hex.DecodeString(in.WitnessScript)
		if err != nil {
			return nil, ErrMalformedPartialTransaction
		}
		sig, err := txscript.RawTxInWitnessSignature(
			tx, sigHashes, i, int64(in.Value), witnessScript,
			txscript.SigHashAll, privateKey,
		)
		if err != nil {
			return nil, err
		}

		if in.Signatures == nil {
			in.Signatures = map[string]string{}
		}
		pubKey := hex.EncodeToString(privateKey.PubKey().SerializeCompressed())
		in.Signatures[pubKey] = hex.EncodeToString(sig)
	}
	return signed, nil
}

// FinalizeTransaction assembles the witnesses of a fully signed envelope and
// returns the broadcast-ready transaction in hex. Script-hash inputs need a
// signature for each key of their witness script, placed in script key
// order behind the CHECKMULTISIG dummy element.
func FinalizeTransaction(partial *PartialTransaction) (string, error) {
	if partial == nil || len(partial.Inputs) <= 0 {
		return "", ErrEmptyInputs
	}

	tx, err := partial.tx()
	if err != nil {
		return "", ErrMalformedPartialTransaction
	}

	for i, in := range partial.Inputs {
		switch in.Script {
		case P2TR:
			if len(tx.TxIn[i].Witness) <= 0 {
				return "", ErrMissingSignatures
			}
		case P2WSH2of2:
			witnessScript, err := hex.DecodeString(in.WitnessScript)
			if err != nil {
				return "", ErrMalformedPartialTransaction
			}
			pubKeys, err := multisigScriptPubKeys(witnessScript)
			if err != nil {
				return "", err
			}

			witness := wire.TxWitness{nil}
			for _, pubKey := range pubKeys {
				sigHex, ok := in.Signatures[pubKey]
				if !ok {
					return "", ErrMissingSignatures
				}
				sig, err := hex.DecodeString(sigHex)
				if err != nil {
					return "", ErrMalformedPartialTransaction
				}
				witness = append(witness, sig)
			}
			witness = append(witness, witnessScript)
			tx.TxIn[i].Witness = witness
		default:
			return "", ErrUnsupportedScriptType
		}
	}
	return txToHex(tx)
}

func (p *PartialTransaction) inputDescriptors() ([]TxInput, error) {
	inputs := make([]TxInput, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		prevScript, err := hex.DecodeString(in.PrevScript)
		if err != nil {
			return nil, ErrMalformedPartialTransaction
		}
		inputs = append(inputs, TxInput{
			TxID:       in.TxID,
			VOut:       in.VOut,
			Value:      in.Value,
			PrevScript: prevScript,
			Script:     in.Script,
		})
	}
	return inputs, nil
}

func prevOutFetcher(inputs []TxInput) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, in := range inputs {
		outpoint, err := in.outpoint()
		if err != nil {
			return nil, err
		}
		fetcher.AddPrevOut(*outpoint, wire.NewTxOut(int64(in.Value), in.PrevScript))
	}
	return fetcher, nil
}

// multisigScriptPubKeys extracts the compressed public keys of a multisig
// witness script in the order they appear in the script.
func multisigScriptPubKeys(witnessScript []byte) ([]string, error) {
	pubKeys := make([]string, 0, 2)
	tokenizer := txscript.MakeScriptTokenizer(0, witnessScript)
	for tokenizer.Next() {
		if data := tokenizer.Data(); len(data) == 33 {
			pubKeys = append(pubKeys, hex.EncodeToString(data))
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, ErrMalformedPartialTransaction
	}
	if len(pubKeys) <= 0 {
		return nil, ErrUnsupportedScriptType
	}
	return pubKeys, nil
}

func clonePartial(p *PartialTransaction) *PartialTransaction {
	clone := &PartialTransaction{
		TxHex:  p.TxHex,
		Inputs: make([]PartialInput, len(p.Inputs)),
	}
	copy(clone.Inputs, p.Inputs)
	for i := range clone.Inputs {
		sigs := make(map[string]string, len(p.Inputs[i].Signatures))
		for k, v := range p.Inputs[i].Signatures {
			sigs[k] = v
		}
		clone.Inputs[i].Signatures = sigs
	}
	return clone
}

func outpointKey(txid string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid, vout)
}
