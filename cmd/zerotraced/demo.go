// demo.go - Example client: two identities, one message, read back.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zerotrace/internal/messaging"
)

const demoPlaintext = "Hello from ZeroTrace! This message is end-to-end encrypted with state transition proofs."

func newDemoCmd() *cobra.Command {
	var (
		serverURL string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the example client against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &demoClient{
				base: strings.TrimRight(serverURL, "/"),
				http: &http.Client{Timeout: timeout},
			}
			return runDemo(cmd.Context(), c, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	return cmd
}

type demoClient struct {
	base string
	http *http.Client
}

func (c *demoClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func runDemo(ctx context.Context, c *demoClient, out io.Writer) error {
	fmt.Fprintln(out, "1. Creating identities...")
	var alice, bob struct {
		IdentityHash string `json:"identity_hash"`
	}
	if err := c.do(ctx, http.MethodPost, "/identity/create", nil, &alice); err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPost, "/identity/create", nil, &bob); err != nil {
		return err
	}
	fmt.Fprintf(out, "   alice: %s\n   bob:   %s\n", alice.IdentityHash, bob.IdentityHash)

	thread := messaging.ThreadID(alice.IdentityHash, bob.IdentityHash)
	fmt.Fprintf(out, "2. Thread: %s\n", thread)

	fmt.Fprintln(out, "3. Sending message...")
	var sent json.RawMessage
	err := c.do(ctx, http.MethodPost, "/send", map[string]string{
		"thread_id":            thread,
		"recipient_id":         bob.IdentityHash,
		"plaintext":            demoPlaintext,
		"sender_identity_hash": alice.IdentityHash,
		"sender_signature":     "",
	}, &sent)
	if err != nil {
		return err
	}
	printJSON(out, sent)

	fmt.Fprintln(out, "4. Reading messages...")
	var read json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/read/"+thread, nil, &read); err != nil {
		return err
	}
	printJSON(out, read)

	fmt.Fprintln(out, "5. CSTATE for alice...")
	var cstate json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/cstate/"+alice.IdentityHash, nil, &cstate); err != nil {
		return err
	}
	printJSON(out, cstate)
	return nil
}

func printJSON(out io.Writer, raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "   ", "  "); err != nil {
		fmt.Fprintf(out, "   %s\n", raw)
		return
	}
	fmt.Fprintf(out, "   %s\n", buf.String())
}
