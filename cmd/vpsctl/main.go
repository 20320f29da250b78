package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// vpsctl is the operator's side door: it reads the daemon's HTTP shim
// and tails the lifecycle event stream over NATS.

var (
	baseURL string
	natsURL string
)

func main() {
	root := &cobra.Command{
		Use:   "vpsctl",
		Short: "Operator CLI for the vps-bot daemon",
	}
	root.PersistentFlags().StringVar(&baseURL, "addr", "http://localhost:8080", "daemon HTTP address")
	root.PersistentFlags().StringVar(&natsURL, "nats", nats.DefaultURL, "NATS server URL")

	root.AddCommand(pingCmd(), getCmd(), listCmd(), watchCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(baseURL + "/healthz")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, err = io.Copy(os.Stdout, resp.Body)
			return err
		},
	}
}

func getCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one owner's VPS record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return fmt.Errorf("--owner required")
			}
			return dumpJSON(baseURL + "/vps?owner=" + owner)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all VPS records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpJSON(baseURL + "/vps/list")
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream lifecycle events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, err := nats.Connect(natsURL, nats.Name("vpsctl"))
			if err != nil {
				return err
			}
			defer nc.Drain()

			sub, err := nc.SubscribeSync("vps.>")
			if err != nil {
				return err
			}
			fmt.Println("watching vps.> (ctrl-c to stop)")
			for {
				msg, err := sub.NextMsg(time.Minute)
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", msg.Subject, string(msg.Data))
			}
		},
	}
}

func dumpJSON(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
