// Reader reads the output of a http reporter, used by the status command and tests.

package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type HttpReader struct {
	baseURL string
	client  *http.Client
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return NewHttpReaderFromURL("http://" + serverIP + ":" + serverPort)
}

func NewHttpReaderFromURL(baseURL string) *HttpReader {
	return &HttpReader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (hr *HttpReader) get(route string, query url.Values) (int, []byte, error) {
	u := hr.baseURL + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := hr.client.Get(u)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (hr *HttpReader) GetHello() (string, error) {
	_, body, err := hr.get(ROUTE_HELLO, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) GetStatus() (*StatusResponse, error) {
	code, body, err := hr.get(ROUTE_STATUS, nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("status: http %d: %s", code, body)
	}
	var status StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetRelayedTx returns the raw response body for a relayed transaction.
func (hr *HttpReader) GetRelayedTx(txHash string) (string, error) {
	_, body, err := hr.get(ROUTE_RELAYED_TX, url.Values{"hash": {txHash}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
