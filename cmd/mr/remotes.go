package main

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// Remote is a named relay profile.
type Remote struct {
	URL      string `toml:"url"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
	Token    string `toml:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
}

// Validate checks that the profile's addresses are usable by the CLI.
func (r Remote) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an http:// or https:// address", r.URL)
	}
	if r.GRPCAddr != "" {
		if _, _, err := net.SplitHostPort(r.GRPCAddr); err != nil {
			return fmt.Errorf("grpc address %q must be host:port", r.GRPCAddr)
		}
	}
	if r.NATSURL != "" {
		u, err := url.Parse(r.NATSURL)
		if err != nil || u.Host == "" || !slices.Contains([]string{"nats", "tls", "ws", "wss"}, u.Scheme) {
			return fmt.Errorf("nats url %q must be a nats://, tls://, ws:// or wss:// address", r.NATSURL)
		}
	}
	return nil
}

// RemotesConfig is the on-disk set of remotes and the active one.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

var errNoActiveRemote = errors.New("no active remote; specify a name or run 'mr remote use <name>'")

// names returns the remote names in sorted order.
func (c *RemotesConfig) names() []string {
	return slices.Sorted(maps.Keys(c.Remotes))
}

// resolve returns the named remote, or the active one when name is empty.
func (c *RemotesConfig) resolve(name string) (string, Remote, error) {
	if name == "" {
		name = c.Active
	}
	if name == "" {
		return "", Remote{}, errNoActiveRemote
	}
	r, ok := c.Remotes[name]
	if !ok {
		return "", Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

// put stores r under name and reports whether it is new. The first remote
// stored becomes active.
func (c *RemotesConfig) put(name string, r Remote) bool {
	_, existed := c.Remotes[name]
	c.Remotes[name] = r
	if c.Active == "" {
		c.Active = name
	}
	return !existed
}

// remove deletes name, clearing Active when it pointed there.
func (c *RemotesConfig) remove(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	delete(c.Remotes, name)
	if c.Active == name {
		c.Active = ""
	}
	return nil
}

// remoteConfigPath is $XDG_STATE_HOME/motionrelay/remotes.toml, falling
// back to ~/.local/state.
func remoteConfigPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "motionrelay")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	path, err := remoteConfigPath()
	if err != nil {
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// saveRemotesConfig replaces the remotes file. Tokens live in it, so it is
// only readable by the owner.
func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// The active remote supplies flag defaults; it is read once per process.
var activeRemote = sync.OnceValue(func() Remote {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return Remote{}
	}
	_, r, err := cfg.resolve("")
	if err != nil {
		return Remote{}
	}
	return r
})

func activeRemoteURL() string      { return activeRemote().URL }
func activeRemoteGRPCAddr() string { return activeRemote().GRPCAddr }
func activeRemoteToken() string    { return activeRemote().Token }
func activeRemoteNATSURL() string  { return activeRemote().NATSURL }
