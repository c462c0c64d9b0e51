// Command client is a thin CLI for talking to a node over HTTP: submit a
// transaction, or print the node's current status, inventory, or balance
// table. It never touches node internals directly, the same separation
// the teacher's wallet binaries keep from the node process.
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
	"github.com/spf13/cobra"
)

func main() {
	var addr string

	root := &cobra.Command{
		Use:   "client",
		Short: "talk to a node's HTTP API",
	}
	root.PersistentFlags().StringVar(&addr, "node", "127.0.0.1:8080", "node address, ip:port")

	root.AddCommand(statusCmd(&addr), balanceCmd(&addr), sendCmd(&addr))

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func statusCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the node's /status payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(*addr, http.MethodGet, "/status", nil)
		},
	}
}

func balanceCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "print the node's /balance payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(*addr, http.MethodGet, "/balance", nil)
		},
	}
}

func sendCmd(addr *string) *cobra.Command {
	var sender, receiver string
	var amount int64

	cmd := &cobra.Command{
		Use:   "send",
		Short: "submit a transaction via POST /inv",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.TransactionRequest{Sender: sender, Receiver: receiver, Amount: amount}
			return printJSON(*addr, http.MethodPost, "/inv", req)
		},
	}

	cmd.Flags().StringVar(&sender, "from", "", "sender node id (required)")
	cmd.Flags().StringVar(&receiver, "to", "", "receiver node id (required)")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to transfer (required)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func printJSON(addr, method, path string, body any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+addr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out.Bytes(), "", "  "); err != nil {
		fmt.Println(out.String())
		return nil
	}

	fmt.Println(pretty.String())
	return nil
}
