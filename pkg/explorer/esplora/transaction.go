package esplora

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/heirvault/heirvault-daemon/pkg/explorer"
)

func (e *esplora) GetTransactionHex(txid string) (string, error) {
	url := fmt.Sprintf("%s/tx/%s/hex", e.apiURL, txid)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%s", resp)
	}
	return resp, nil
}

func (e *esplora) IsTransactionConfirmed(txid string) (bool, error) {
	trxStatus, err := e.GetTransactionStatus(txid)
	if err != nil {
		return false, err
	}
	return trxStatus.Confirmed(), nil
}

func (e *esplora) GetTransactionStatus(txid string) (explorer.TxStatus, error) {
	url := fmt.Sprintf("%s/tx/%s/status", e.apiURL, txid)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", resp)
	}

	var trxStatus txStatus
	if err := json.Unmarshal([]byte(resp), &trxStatus); err != nil {
		return nil, err
	}
	return trxStatus, nil
}

func (e *esplora) GetTransactionsForAddress(addr string) ([]explorer.Transaction, error) {
	url := fmt.Sprintf("%s/address/%s/txs", e.apiURL, addr)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", resp)
	}

	var txInfos []txInfo
	if err := json.Unmarshal([]byte(resp), &txInfos); err != nil {
		return nil, err
	}

	txs := make([]explorer.Transaction, 0, len(txInfos))
	for _, trx := range txInfos {
		txs = append(txs, trx)
	}
	return txs, nil
}

func (e *esplora) BroadcastTransaction(txhex string) (string, error) {
	url := fmt.Sprintf("%s/tx", e.apiURL)
	headers := map[string]string{"Content-Type": "text/plain"}

	status, resp, err := e.client.NewHTTPRequest("POST", url, txhex, headers)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &explorer.TxRejectedError{Reason: resp}
	}
	return resp, nil
}

func (e *esplora) Faucet(address string) (string, error) {
	url := fmt.Sprintf("%s/faucet", e.apiURL)
	payload := map[string]string{"address": address}
	body, _ := json.Marshal(payload)

	status, resp, err := e.client.NewHTTPRequest("POST", url, string(body), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%s", resp)
	}

	var respBody map[string]string
	if err := json.Unmarshal([]byte(resp), &respBody); err != nil {
		return "", err
	}
	return respBody["txId"], nil
}
