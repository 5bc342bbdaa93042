package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named relay remotes",
	GroupID:           "system",
	PersistentPreRunE: noClient,
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: strings.TrimRight(args[1], "/")}
		r.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		if err := r.Validate(); err != nil {
			return err
		}

		var created, active bool
		err := editRemotes(func(cfg *RemotesConfig) error {
			created = cfg.put(name, r)
			active = cfg.Active == name
			return nil
		})
		if err != nil {
			return err
		}
		verb := "updated"
		if created {
			verb = "added"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q %s (%s)", name, verb, r.URL)
		if active {
			fmt.Fprint(cmd.OutOrStdout(), ", active")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var wasActive bool
		err := editRemotes(func(cfg *RemotesConfig) error {
			wasActive = cfg.Active == args[0]
			return cfg.remove(args[0])
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
		if wasActive {
			fmt.Fprintln(cmd.OutOrStdout(), "no remote is active now; pick one with 'mr remote use <name>'")
		}
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tGRPC\tNATS\tTOKEN")
		for _, name := range cfg.names() {
			r := cfg.Remotes[name]
			marker := " "
			if name == cfg.Active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\t%s\n",
				marker, name, r.URL, orDash(r.GRPCAddr), orDash(r.NATSURL), orDash(maskToken(r.Token)))
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := editRemotes(func(cfg *RemotesConfig) error {
			name, _, err := cfg.resolve(args[0])
			if err != nil {
				return err
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", args[0])
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a remote (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name, r, err := cfg.resolve(firstArg(args))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if name == cfg.Active {
			name += " (active)"
		}
		fmt.Fprintf(w, "name:\t%s\n", name)
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		fmt.Fprintf(w, "reporter page:\t%s/\n", r.URL)
		for _, f := range []struct{ label, value string }{
			{"grpc_addr", r.GRPCAddr},
			{"nats_url", r.NATSURL},
			{"token", maskToken(r.Token)},
		} {
			if f.value != "" {
				fmt.Fprintf(w, "%s:\t%s\n", f.label, f.value)
			}
		}
		return w.Flush()
	},
}

var remotePingCmd = &cobra.Command{
	Use:   "ping [<name>]",
	Short: "Check that a remote's relay answers (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name, r, err := cfg.resolve(firstArg(args))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		report := func(transport, addr string, health func(context.Context) (string, error)) {
			start := time.Now()
			status, err := health(ctx)
			if err == nil && status != "ok" {
				err = fmt.Errorf("status %q", status)
			}
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %v\n", name, transport, addr, err)
				errs = append(errs, fmt.Errorf("%s: %w", transport, err))
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: ok (%s)\n",
				name, transport, addr, time.Since(start).Round(time.Millisecond))
		}

		hc := newHTTPClient(r.URL, r.Token)
		report("http", r.URL, hc.Health)
		if r.GRPCAddr != "" {
			gc, err := newGRPCClient(r.GRPCAddr, r.Token)
			if err != nil {
				return err
			}
			defer gc.Close()
			report("grpc", r.GRPCAddr, gc.Health)
		}
		return errors.Join(errs...)
	},
}

// maskToken keeps a short prefix so tokens can be told apart without
// printing them.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-4)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address of the relay (host:port)")
	remoteAddCmd.Flags().String("token", "", "bearer token for /v1 and gRPC calls")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for 'mr watch --nats'")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd, remotePingCmd)
}
