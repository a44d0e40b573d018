package esplora

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/wire"
	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

func (e *esplora) GetUnspents(addr string) ([]explorer.Utxo, error) {
	return e.getUnspents(addr)
}

func (e *esplora) GetUnspentsForAddresses(addresses []string) ([]explorer.Utxo, error) {
	chUnspents := make(chan []explorer.Utxo)
	chErr := make(chan error, 1)
	unspents := make([]explorer.Utxo, 0)

	for _, addr := range addresses {
		go e.getUnspentsForAddress(addr, chUnspents, chErr)

		select {
		case err := <-chErr:
			close(chErr)
			close(chUnspents)
			return nil, err
		case unspentsForAddress := <-chUnspents:
			unspents = append(unspents, unspentsForAddress...)
		}
	}

	return unspents, nil
}

func (e *esplora) GetBalance(addr string) (uint64, error) {
	unspents, err := e.getUnspents(addr)
	if err != nil {
		return 0, err
	}
	balance := uint64(0)
	for _, unspent := range unspents {
		if unspent.IsConfirmed() {
			balance += unspent.Value()
		}
	}
	return balance, nil
}

func (e *esplora) getUnspents(addr string) ([]explorer.Utxo, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", e.apiURL, addr)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", resp)
	}

	var witnessOuts []witnessUtxo
	if err := json.Unmarshal([]byte(resp), &witnessOuts); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}

	unspents := make([]explorer.Utxo, len(witnessOuts))
	chUnspents := make(chan explorer.Utxo)
	chErr := make(chan error, 1)

	for i := range witnessOuts {
		out := witnessOuts[i]
		go e.getUtxoDetails(out, chUnspents, chErr)

		select {
		case err := <-chErr:
			close(chErr)
			close(chUnspents)
			return nil, fmt.Errorf("error on retrieving utxos: %s", err)
		case unspent := <-chUnspents:
			unspents[i] = unspent
		}
	}

	return unspents, nil
}

func (e *esplora) getUnspentsForAddress(
	addr string,
	chUnspents chan []explorer.Utxo,
	chErr chan error,
) {
	unspents, err := e.getUnspents(addr)
	if err != nil {
		chErr <- err
		return
	}
	chUnspents <- unspents
}

// getUtxoDetails fills in the output script of the unspent by fetching its
// funding transaction.
func (e *esplora) getUtxoDetails(
	unspent witnessUtxo,
	chUnspents chan explorer.Utxo,
	chErr chan error,
) {
	prevoutTxHex, err := e.GetTransactionHex(unspent.Hash())
	if err != nil {
		chErr <- err
		return
	}

	buf, err := hex.DecodeString(prevoutTxHex)
	if err != nil {
		chErr <- err
		return
	}
	trx := &wire.MsgTx{}
	if err := trx.Deserialize(bytes.NewReader(buf)); err != nil {
		chErr <- err
		return
	}
	if int(unspent.UIndex) >= len(trx.TxOut) {
		chErr <- fmt.Errorf("utxo index out of range for tx %s", unspent.Hash())
		return
	}
	unspent.UScript = trx.TxOut[unspent.UIndex].PkScript

	chUnspents <- unspent
}
