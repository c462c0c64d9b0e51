// Command miner runs the proof-of-work procedure once against a local
// node: fetch pending transactions, build a candidate block, search for
// a valid nonce, and submit the solved block back. It speaks to the node
// purely over HTTP, the same way the teacher's wallet binaries never
// touch a node's internals directly.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/overlaychain/node/foundation/blockchain/api"
	"github.com/overlaychain/node/foundation/blockchain/database"
	"github.com/overlaychain/node/foundation/blockchain/genesis"
	"github.com/overlaychain/node/foundation/blockchain/miner"
	"github.com/spf13/cobra"
)

func main() {
	var (
		addr    string
		creator string
	)

	root := &cobra.Command{
		Use:          "miner",
		Short:        "mine one block against a local node",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, creator)
		},
	}

	root.Flags().StringVar(&addr, "node", "127.0.0.1:8080", "node address, ip:port")
	root.Flags().StringVar(&creator, "creator", "", "node id recorded as the block's creator (required)")
	root.MarkFlagRequired("creator")

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(addr, creator string) error {
	client := &httpClient{addr: addr, client: &http.Client{Timeout: 10 * time.Second}}

	result, err := miner.Mine(context.Background(), creator, client, client)
	if err != nil {
		return fmt.Errorf("mine: %w", err)
	}

	fmt.Printf("mined block %s in %d attempts (difficulty %d)\n", result.Block.Hash, result.Attempts, result.Difficulty)
	return nil
}

// httpClient implements both miner.InventoryFetcher and miner.BlockPoster
// against a node's HTTP API.
type httpClient struct {
	addr   string
	client *http.Client
}

func (c *httpClient) Fetch(ctx context.Context) (miner.Inventory, error) {
	var blocks []database.Block
	if err := c.getJSON(ctx, "/getblocks?mainchain=true", &blocks); err != nil {
		return miner.Inventory{}, err
	}

	var head database.Block
	if len(blocks) > 0 {
		head = blocks[len(blocks)-1]
	}

	var inv struct {
		Transactions []database.Transaction `json:"transactions"`
	}
	if err := c.getJSON(ctx, "/inventory", &inv); err != nil {
		return miner.Inventory{}, err
	}

	return miner.Inventory{
		Head:          head,
		Pending:       inv.Transactions,
		Difficulty:    genesis.DefaultDifficulty,
		MaxTxPerBlock: genesis.DefaultMaxTxPerBlock,
	}, nil
}

func (c *httpClient) Post(ctx context.Context, b database.Block) error {
	var resp api.StatusResponse
	return c.postJSON(ctx, "/block", api.BlockRequest{Block: b}, &resp)
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+c.addr+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *httpClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.addr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
