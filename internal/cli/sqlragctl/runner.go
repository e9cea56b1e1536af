// Package sqlragctl is the operator CLI. Most commands call the HTTP API;
// seed works directly against the configured database.
package sqlragctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlrag/sqlrag/internal/seed"
)

// SeedFunc fills the configured database with the demo dataset.
type SeedFunc func(ctx context.Context, opts seed.Options, rebuildIndex bool) (seed.Summary, error)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
	Seed       SeedFunc
}

// requestError marks failures after argument parsing succeeded.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// Run executes one command and returns the process exit code: 0 on
// success, 1 when the request failed and 2 for usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	root := NewRootCommand(defaults)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, err)
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return 1
	}
	_, _ = fmt.Fprintln(stderr)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func NewRootCommand(defaults Options) *cobra.Command {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	c := &client{}
	root := &cobra.Command{
		Use:           "sqlragctl",
		Short:         "Ask questions of a SQL database through the sqlrag API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			c.http = defaults.HTTPClient
			if c.http == nil {
				c.http = &http.Client{Timeout: c.timeout}
			}
			c.stdout = stdout
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlrag API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")

	root.AddCommand(
		simpleCommand(c, "health", "Check API liveness", http.MethodGet, "/v1/health"),
		simpleCommand(c, "ready", "Check API readiness", http.MethodGet, "/v1/ready"),
		simpleCommand(c, "schema", "Print the schema documents", http.MethodGet, "/v1/schema"),
		askCommand(c),
		queryCommand(c),
		indexCommand(c),
		exportCommand(c),
		seedCommand(defaults.Seed, stdout),
	)
	return root
}

func simpleCommand(c *client, use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd.Context(), method, path, nil)
		},
	}
}

func askCommand(c *client) *cobra.Command {
	var noAnswer, export bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a natural-language question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"question": strings.Join(args, " ")}
			if noAnswer {
				body["synthesize"] = false
			}
			if export {
				body["export"] = true
			}
			return c.call(cmd.Context(), http.MethodPost, "/v1/ask", body)
		},
	}
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "skip the natural-language answer")
	cmd.Flags().BoolVar(&export, "export", false, "export the result as parquet")
	return cmd
}

func queryCommand(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run read-only SQL through the safety checks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd.Context(), http.MethodPost, "/v1/query", map[string]any{"sql": strings.Join(args, " ")})
		},
	}
}

func indexCommand(c *client) *cobra.Command {
	index := &cobra.Command{
		Use:   "index",
		Short: "Manage the schema index",
	}
	index.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Re-extract the schema and rebuild the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.call(cmd.Context(), http.MethodPost, "/v1/index/rebuild", nil)
		},
	})
	return index
}

func exportCommand(c *client) *cobra.Command {
	exports := &cobra.Command{
		Use:   "export",
		Short: "Manage exported results",
	}
	exports.AddCommand(&cobra.Command{
		Use:   "delete <export-id>",
		Short: "Delete an exported result from the object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.call(cmd.Context(), http.MethodDelete, "/v1/exports/"+url.PathEscape(args[0]), nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "export %s deleted\n", args[0])
			return nil
		},
	})
	return exports
}

func seedCommand(run SeedFunc, stdout io.Writer) *cobra.Command {
	var opts seed.Options
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and fill the demo enterprise database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if run == nil {
				return &requestError{err: errors.New("seeding is not available in this build")}
			}
			summary, err := run(cmd.Context(), opts, rebuild)
			if err != nil {
				return &requestError{err: err}
			}
			encoded, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return &requestError{err: err}
			}
			_, _ = fmt.Fprintln(stdout, string(encoded))
			return nil
		},
	}
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "random seed for the generated data")
	cmd.Flags().IntVar(&opts.Orders, "orders", seed.DefaultOrders, "number of orders to generate")
	cmd.Flags().BoolVar(&rebuild, "rebuild-index", true, "rebuild the schema index after seeding")
	return cmd
}

type client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	stdout  io.Writer
}

func (c *client) call(ctx context.Context, method, path string, payload any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, c.http, method, endpoint, body)
	if err != nil {
		return &requestError{err: fmt.Errorf("request failed: %w", err)}
	}
	if code >= 400 {
		return &requestError{err: fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(responseBody)))}
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(responseBody))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
