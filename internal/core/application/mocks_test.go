package application

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/heirvault/heirvault-daemon/internal/core/ports"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
	"github.com/heirvault/heirvault-daemon/pkg/wallet"
)

// mockUtxo implements explorer.Utxo.
type mockUtxo struct {
	hash      string
	index     uint32
	value     uint64
	script    []byte
	confirmed bool
	height    int
}

func (u mockUtxo) Hash() string      { return u.hash }
func (u mockUtxo) Index() uint32     { return u.index }
func (u mockUtxo) Value() uint64     { return u.value }
func (u mockUtxo) Script() []byte    { return u.script }
func (u mockUtxo) IsConfirmed() bool { return u.confirmed }
func (u mockUtxo) BlockHeight() int  { return u.height }

// mockTx implements explorer.Transaction.
type mockTx struct {
	hash      string
	confirmed bool
	height    int
}

func (t mockTx) Hash() string     { return t.hash }
func (t mockTx) Confirmed() bool  { return t.confirmed }
func (t mockTx) BlockHeight() int { return t.height }
func (t mockTx) BlockTime() int64 { return 0 }

// mockExplorer is a canned chain-data source. Utxos and transactions are
// keyed by address; broadcast transactions are recorded for inspection.
type mockExplorer struct {
	explorer.Service

	mtx          sync.Mutex
	tip          int
	balances     map[string]uint64
	balanceErr   error
	utxos        map[string][]explorer.Utxo
	txs          map[string][]explorer.Transaction
	fees         map[int]float64
	broadcasted  []string
	broadcastErr error
}

func newMockExplorer() *mockExplorer {
	return &mockExplorer{
		tip:      100,
		balances: map[string]uint64{},
		utxos:    map[string][]explorer.Utxo{},
		txs:      map[string][]explorer.Transaction{},
		fees:     map[int]float64{1: 2.0},
	}
}

func (m *mockExplorer) GetBlockHeight() (int, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.tip, nil
}

func (m *mockExplorer) GetBalance(addr string) (uint64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balances[addr], nil
}

func (m *mockExplorer) GetUnspents(addr string) ([]explorer.Utxo, error) {
	return m.GetUnspentsForAddresses([]string{addr})
}

func (m *mockExplorer) GetUnspentsForAddresses(addresses []string) ([]explorer.Utxo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	utxos := make([]explorer.Utxo, 0)
	for _, addr := range addresses {
		utxos = append(utxos, m.utxos[addr]...)
	}
	return utxos, nil
}

func (m *mockExplorer) GetTransactionsForAddress(addr string) ([]explorer.Transaction, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.txs[addr], nil
}

func (m *mockExplorer) GetFeeEstimates() (map[int]float64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.fees, nil
}

func (m *mockExplorer) BroadcastTransaction(txHex string) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.broadcastErr != nil {
		return "", m.broadcastErr
	}
	m.broadcasted = append(m.broadcasted, txHex)
	return fmt.Sprintf("%064x", len(m.broadcasted)), nil
}

func (m *mockExplorer) fundAddress(address string, script []byte, value uint64, height int) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	txid := fmt.Sprintf("%064x", len(m.utxos[address])+height)
	m.utxos[address] = append(m.utxos[address], mockUtxo{
		hash:      txid,
		index:     0,
		value:     value,
		script:    script,
		confirmed: true,
		height:    height,
	})
	m.txs[address] = append(m.txs[address], mockTx{
		hash:      txid,
		confirmed: true,
		height:    height,
	})
}

// mockEscrow is an escrow co-signer backed by its own deterministic wallet.
// It recognizes its key inside a multisig witness script by scanning a small
// window of child positions under its account key.
type mockEscrow struct {
	w    *wallet.Wallet
	xpub string
}

func newMockEscrow(net *chaincfg.Params) (*mockEscrow, error) {
	w, err := wallet.NewWalletFromMasterSecret(wallet.NewWalletOpts{
		MasterSecret: []byte("an-escrow-master-secret-32-bytes"),
		Network:      net,
	})
	if err != nil {
		return nil, err
	}
	xpub, err := w.AccountExtendedPublicKey(wallet.AccountExtendedKeyOpts{
		BasePath: wallet.MultisigBaseDerivationPath,
		Account:  0,
	})
	if err != nil {
		return nil, err
	}
	return &mockEscrow{w: w, xpub: xpub}, nil
}

func (e *mockEscrow) Fingerprint() string {
	fingerprint, _ := e.w.MasterFingerprint()
	return fingerprint
}

func (e *mockEscrow) AccountExtendedPublicKey() string {
	return e.xpub
}

func (e *mockEscrow) SignPartialTransaction(encodedTx string) (string, error) {
	partial, err := wallet.DecodePartialTransaction(encodedTx)
	if err != nil {
		return "", err
	}

	inputPaths := make(map[string]string)
	for _, in := range partial.Inputs {
		if in.Script != wallet.P2WSH2of2 {
			continue
		}
		witnessScript, err := hex.DecodeString(in.WitnessScript)
		if err != nil {
			return "", err
		}
		path, err := e.findPath(witnessScript)
		if err != nil {
			return "", err
		}
		inputPaths[fmt.Sprintf("%s:%d", in.TxID, in.VOut)] = path
	}

	signed, err := e.w.SignPartialTransaction(wallet.SignPartialTransactionOpts{
		Partial:    partial,
		InputPaths: inputPaths,
	})
	if err != nil {
		return "", err
	}
	return signed.Encode()
}

func (e *mockEscrow) findPath(witnessScript []byte) (string, error) {
	key, err := wallet.ParseExtendedPublicKey(e.xpub, &chaincfg.RegressionNetParams)
	if err != nil {
		return "", err
	}
	for change := uint32(0); change <= 1; change++ {
		changeNode, err := key.Derive(change)
		if err != nil {
			continue
		}
		for index := uint32(0); index < 10; index++ {
			node, err := changeNode.Derive(index)
			if err != nil {
				continue
			}
			pubKey, err := node.ECPubKey()
			if err != nil {
				continue
			}
			if bytes.Contains(witnessScript, pubKey.SerializeCompressed()) {
				return fmt.Sprintf("m/48'/0'/0'/%d/%d", change, index), nil
			}
		}
	}
	return "", wallet.ErrUnrecognizedInput
}

// mockContacts implements ports.ContactDirectory.
type mockContacts struct {
	contacts []ports.Contact
}

func (m *mockContacts) ListContacts() ([]ports.Contact, error) {
	return m.contacts, nil
}
