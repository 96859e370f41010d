package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/calderaledger/caldera/app/services/node/handlers"
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
	"github.com/calderaledger/caldera/foundation/blockchain/state"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_NodeStatus(t *testing.T) {
	t.Log("Given the need to report chain status to peers.")
	{
		t.Logf("\tTest 0:\tWhen querying the private status endpoint.")
		{
			key, err := signature.GenerateKeyPair()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate a key pair: %v", failed, err)
			}

			st, err := state.New(state.Config{
				MinerAddress: signature.PublicKeyToAddress(key.PubKey()),
				NodeID:       "node-status",
				Host:         "node-status:9080",
				Genesis:      genesis.Network(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to construct the state: %v", failed, err)
			}
			t.Cleanup(func() { st.Shutdown() })

			mux := handlers.PrivateMux(handlers.MuxConfig{
				Shutdown: make(chan os.Signal, 1),
				Log:      zap.NewNop().Sugar(),
				State:    st,
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			resp, err := http.Get(srv.URL + "/v1/node/status")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to call the endpoint: %v", failed, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 200. got %d", failed, resp.StatusCode)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 200.", success)

			var status peer.Status
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould decode the status payload: %v", failed, err)
			}

			info := st.Info()
			if status.GenesisHash != info.GenesisHash || status.TipHash != info.TipHash || status.TipNumber != info.TipNumber {
				t.Errorf("\t%s\tTest 0:\tShould mirror the chain summary. got %+v", failed, status)
			} else {
				t.Logf("\t%s\tTest 0:\tShould mirror the chain summary.", success)
			}

			if status.CumulativeWork == 0 || status.CumulativeWork != info.CumulativeWork {
				t.Errorf("\t%s\tTest 0:\tShould report the cumulative work. got %d, exp %d", failed, status.CumulativeWork, info.CumulativeWork)
			} else {
				t.Logf("\t%s\tTest 0:\tShould report the cumulative work.", success)
			}
		}
	}
}
