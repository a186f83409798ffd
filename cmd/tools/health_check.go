package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serviceAddr string
	timeout     time.Duration
	since       string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderflowctl",
		Short:         "Operator utility for the orderflow staking service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serviceAddr, "addr", "http://localhost:8080", "base URL of the service")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check that the service answers its health check",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				healthy, err := checkServiceHealth(client(), serviceAddr+"/health")
				if err != nil {
					return fmt.Errorf("health check failed: %w", err)
				}
				if !healthy {
					return fmt.Errorf("service is NOT healthy")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Service is healthy!")
				return nil
			},
		},
		getCmd("state", "Print the protocol state", cobra.NoArgs, func(args []string) string {
			return "/state"
		}),
		getCmd("account <owner>", "Print a user account", cobra.ExactArgs(1), func(args []string) string {
			return "/accounts/" + args[0]
		}),
		getCmd("rewards <owner>", "Print the reward a claim would pay now", cobra.ExactArgs(1), func(args []string) string {
			return "/accounts/" + args[0] + "/rewards"
		}),
		historyCmd("events", "Print archived ledger events"),
		historyCmd("swaps", "Print archived swaps"),
	)
	return root
}

// historyCmd lists one of the archives, optionally starting at --since
func historyCmd(resource, short string) *cobra.Command {
	cmd := getCmd(resource, short, cobra.NoArgs, func(args []string) string {
		path := "/" + resource
		if since != "" {
			path += "?" + url.Values{"since": {since}}.Encode()
		}
		return path
	})
	cmd.Flags().StringVar(&since, "since", "", "RFC 3339 time to start from")
	return cmd
}

func client() *http.Client {
	return &http.Client{Timeout: timeout}
}

// getCmd builds a command that GETs one JSON resource and pretty prints it
func getCmd(use, short string, args cobra.PositionalArgs, path func(args []string) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetch(client(), serviceAddr+path(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func checkServiceHealth(c *http.Client, url string) (bool, error) {
	resp, err := c.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("decode health response: %w", err)
	}
	return health["status"] == "ok", nil
}

func fetch(c *http.Client, url string) (string, error) {
	resp, err := c.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw), nil
	}
	return out.String(), nil
}
