package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/pushchain/piet/workbench/config"
	"github.com/pushchain/piet/workbench/constant"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

// ErrorResponse represents an error response from HTTP API
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueryResponse represents the standard query response format from HTTP API
type QueryResponse struct {
	Data json.RawMessage `json:"data"`
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

func connectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn"},
		Short:   "Inspect or change the blockchain connection",
	}

	var outputFormat string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the current connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := queryServer(http.MethodGet, "/api/v1/connection", nil, &out); err != nil {
				return err
			}
			return printOutput(out, outputFormat)
		},
	}
	show.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")

	set := &cobra.Command{
		Use:   "set <mode> [rpc-url]",
		Short: "Switch to mode (none|injected|rpc|websocket-rpc|light-client)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"mode": args[0]}
			if len(args) == 2 {
				body["rpc_url"] = args[1]
			}
			var out map[string]any
			if err := queryServer(http.MethodPost, "/api/v1/connection", body, &out); err != nil {
				return err
			}
			return printOutput(out, outputFormat)
		},
	}
	set.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")

	account := &cobra.Command{
		Use:   "account [address]",
		Short: "Select the sending account; without an address the provider default is used",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if len(args) == 1 {
				body["account"] = args[0]
			}
			var out map[string]any
			if err := queryServer(http.MethodPost, "/api/v1/connection/account", body, &out); err != nil {
				return err
			}
			return printOutput(out, outputFormat)
		},
	}
	account.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")

	cmd.AddCommand(show, set, account)
	return cmd
}

func historyCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the transactions submitted in this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp QueryResponse
			if err := queryServer(http.MethodGet, "/api/v1/history", nil, &resp); err != nil {
				return err
			}
			return printData(resp.Data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func accountsCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the provider's accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp QueryResponse
			if err := queryServer(http.MethodGet, "/api/v1/accounts", nil, &resp); err != nil {
				return err
			}
			return printData(resp.Data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func balanceCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Query the wei balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp QueryResponse
			if err := queryServer(http.MethodGet, "/api/v1/balance/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return printData(resp.Data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func callCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "call <contract> <function> [params...]",
		Short: "Execute a read-only contract function",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Results []string `json:"results" yaml:"results"`
			}
			body := map[string]any{"params": params(args[2:])}
			if err := queryServer(http.MethodPost, functionPath(args[0], "call", args[1]), body, &out); err != nil {
				return err
			}
			return printOutput(out, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func txCmd() *cobra.Command {
	var (
		outputFormat string
		value        string
	)

	cmd := &cobra.Command{
		Use:   "tx <contract> <function> [params...]",
		Short: "Build an unsigned transaction for a contract function",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp QueryResponse
			body := map[string]any{"params": params(args[2:]), "value": value}
			if err := queryServer(http.MethodPost, functionPath(args[0], "tx", args[1]), body, &resp); err != nil {
				return err
			}
			return printData(resp.Data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatJSON, "Output format (yaml|json)")
	cmd.Flags().StringVar(&value, "value", "", "Wei to attach, decimal or 0x-hex")
	return cmd
}

func sendCmd() *cobra.Command {
	var (
		outputFormat string
		value        string
	)

	cmd := &cobra.Command{
		Use:   "send <contract> <function> [params...]",
		Short: "Submit a state-changing contract function and wait for its receipt",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			body := map[string]any{"params": params(args[2:]), "value": value}
			if err := queryServer(http.MethodPost, functionPath(args[0], "send", args[1]), body, &out); err != nil {
				return err
			}
			return printOutput(out, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	cmd.Flags().StringVar(&value, "value", "", "Wei to attach, decimal or 0x-hex")
	return cmd
}

func deployCmd() *cobra.Command {
	var (
		outputFormat string
		data         string
		value        string
		gasLimit     uint64
	)

	cmd := &cobra.Command{
		Use:   "deploy [contract] [constructor-args...]",
		Short: "Deploy a registered contract, or raw creation data with --data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gasLimit == 0 {
				return fmt.Errorf("--gas-limit is required")
			}
			body := map[string]any{"gas_limit": gasLimit, "value": value}
			switch {
			case data != "" && len(args) > 0:
				return fmt.Errorf("pass either a contract name or --data, not both")
			case data != "":
				body["data"] = data
			case len(args) > 0:
				body["contract"] = args[0]
				body["args"] = params(args[1:])
			default:
				return fmt.Errorf("contract name or --data is required")
			}

			var resp QueryResponse
			if err := queryServer(http.MethodPost, "/api/v1/deploy", body, &resp); err != nil {
				return err
			}
			return printData(resp.Data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	cmd.Flags().StringVar(&data, "data", "", "Hex creation payload: bytecode followed by encoded constructor arguments")
	cmd.Flags().StringVar(&value, "value", "", "Wei to attach, decimal or 0x-hex")
	cmd.Flags().Uint64Var(&gasLimit, "gas-limit", 0, "Gas limit for the deployment")
	return cmd
}

func rpcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpc <method> [params-json]",
		Short: "Forward a raw JSON-RPC request to the provider",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rpcParams := json.RawMessage("[]")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params must be a JSON array")
				}
				rpcParams = json.RawMessage(args[1])
			}
			body := map[string]any{"jsonrpc": "2.0", "method": args[0], "params": rpcParams, "id": 1}

			var out json.RawMessage
			if err := queryServer(http.MethodPost, "/api/v1/rpc", body, &out); err != nil {
				return err
			}
			return printData(out, OutputFormatJSON)
		},
	}
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		selected string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the registered contracts as a .piet.json session file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/session/export"
			if selected != "" {
				path += "?selected=" + url.QueryEscape(selected)
			}
			resp, err := request(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if err := checkStatus(resp); err != nil {
				return err
			}

			name := "export.piet.json"
			if _, disposition, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && disposition["filename"] != "" {
				name = filepath.Base(disposition["filename"])
			}
			if dir == "" {
				dir = filepath.Join(nodeHome, constant.ExportsSubdir)
			}
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			target := filepath.Join(dir, name)
			f, err := os.Create(filepath.Clean(target))
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			defer f.Close()
			if _, err := io.Copy(f, resp.Body); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&selected, "selected", "", "Contract to mark as the selected element")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default <home>/exports)")
	return cmd
}

func functionPath(contract, action, function string) string {
	return fmt.Sprintf("/api/v1/contracts/%s/%s/%s", url.PathEscape(contract), action, url.PathEscape(function))
}

// params keeps an empty argument list as [] on the wire.
func params(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}

func getQueryServerPort() (int, error) {
	loadedCfg, err := config.LoadWithEnv(nodeHome)
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}

	return loadedCfg.QueryServerPort, nil
}

func request(method, path string, body any) (*http.Response, error) {
	port, err := getQueryServerPort()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://localhost:%d%s", port, path), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach query server: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("server error: %s", errResp.Error)
}

// queryServer sends body to path and decodes a 200 response into out.
func queryServer(method, path string, body, out any) error {
	resp, err := request(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// printData prints a raw JSON payload in the requested format.
func printData(data json.RawMessage, format string) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return printOutput(v, format)
}

// printOutput prints the output in the specified format
func printOutput(data interface{}, format string) error {
	switch strings.ToLower(format) {
	case OutputFormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
