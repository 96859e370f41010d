package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
)

// baseURL is the private node API prefix every peer exposes.
const baseURL = "http://%s/v1/node"

// client bounds every peer call. A slow peer must not stall the worker.
var client = http.Client{
	Timeout: 10 * time.Second,
}

// send marshals the input, performs the request, and decodes the output
// when a destination is provided.
func send(method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req, err = http.NewRequest(method, url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		var err error
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// =============================================================================

// queryPeerStatus retrieves a peer's chain summary and known peers.
func (w *Worker) queryPeerStatus(p peer.Peer) (peer.Status, error) {
	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, p.Host))

	var status peer.Status
	if err := send(http.MethodGet, url, nil, &status); err != nil {
		return peer.Status{}, err
	}

	return status, nil
}

// queryPeerMempool retrieves a peer's pending transactions.
func (w *Worker) queryPeerMempool(p peer.Peer) ([]ledger.Tx, error) {
	url := fmt.Sprintf("%s/mempool", fmt.Sprintf(baseURL, p.Host))

	var txs []ledger.Tx
	if err := send(http.MethodGet, url, nil, &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

// queryPeerBlocks retrieves a peer's blocks starting at the specified
// height. Height 0 retrieves the full chain.
func (w *Worker) queryPeerBlocks(p peer.Peer, from uint64) ([]ledger.Block, error) {
	url := fmt.Sprintf("%s/blocks/list/%d", fmt.Sprintf(baseURL, p.Host), from)

	var blocks []ledger.Block
	if err := send(http.MethodGet, url, nil, &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// registerWithPeer tells a peer this node exists.
func (w *Worker) registerWithPeer(p peer.Peer) error {
	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, p.Host))

	host := struct {
		Host string `json:"host"`
	}{
		Host: w.state.Host(),
	}

	return send(http.MethodPost, url, host, nil)
}
