package esplora

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

func (e *esplora) GetBlockHeight() (int, error) {
	url := fmt.Sprintf("%s/blocks/tip/height", e.apiURL)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return -1, err
	}
	if status != http.StatusOK {
		return -1, fmt.Errorf("%s", resp)
	}

	blockHeight, err := strconv.Atoi(resp)
	if err != nil {
		return -1, err
	}
	return blockHeight, nil
}

func (e *esplora) GetFeeEstimates() (map[int]float64, error) {
	url := fmt.Sprintf("%s/fee-estimates", e.apiURL)
	status, resp, err := e.client.NewHTTPRequest("GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", resp)
	}

	var rawEstimates map[string]float64
	if err := json.Unmarshal([]byte(resp), &rawEstimates); err != nil {
		return nil, err
	}

	estimates := make(map[int]float64, len(rawEstimates))
	for rawTarget, satsPerVByte := range rawEstimates {
		target, err := strconv.Atoi(rawTarget)
		if err != nil {
			continue
		}
		estimates[target] = satsPerVByte
	}
	return estimates, nil
}
