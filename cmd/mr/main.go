package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/alfredjeanlab/motionrelay/internal/client"
	"github.com/alfredjeanlab/motionrelay/internal/ui"
)

var (
	httpURL    string
	serverAddr string
	transport  string
	token      string
	insecure   bool
	jsonOutput bool

	motionClient client.MotionClient
	httpClient   *client.HTTPClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("MOTION_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:3000"
}

func defaultServer() string {
	if s := os.Getenv("MOTION_SERVER"); s != "" {
		return s
	}
	if s := activeRemoteGRPCAddr(); s != "" {
		return s
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("MOTION_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// tlsConfig returns the client TLS settings. --insecure accepts the
// self-signed certificates produced by `mr certs`.
func tlsConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: insecure}
}

func newHTTPClient(baseURL, tok string) *client.HTTPClient {
	return client.NewHTTPClient(baseURL, tok, client.WithHTTPClient(&http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig()},
	}))
}

func newGRPCClient(addr, tok string) (*client.GRPCClient, error) {
	var opts []grpc.DialOption
	if insecure {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig())))
	}
	return client.NewGRPCClient(addr, tok, opts...)
}

var rootCmd = &cobra.Command{
	Use:           "mr <command>",
	Short:         "Relay and inspect live device motion readings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		httpClient = newHTTPClient(httpURL, token)
		switch transport {
		case "http":
			motionClient = httpClient
		case "grpc":
			c, err := newGRPCClient(serverAddr, token)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			motionClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if motionClient != nil {
			motionClient.Close()
		}
	},
}

// noClient skips client setup for commands that only touch local state or
// run the server.
func noClient(*cobra.Command, []string) error { return nil }

func init() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}

	rootCmd.PersistentFlags().StringVar(&httpURL, "url", defaultHTTPURL(), "relay HTTP base URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "relay gRPC address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token for /v1 and gRPC calls")
	rootCmd.PersistentFlags().BoolVarP(&insecure, "insecure", "k", false, "skip TLS certificate verification (gRPC: use TLS without verification)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "readings", Title: "Readings:"},
		&cobra.Group{ID: "devices", Title: "Devices:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Readings
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)

	// Devices
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(reportersCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(certsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
