package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateState points the remotes file at a fresh directory.
func isolateState(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", "")
}

// runRemote invokes a remote subcommand and returns its output.
func runRemote(t *testing.T, args ...string) (string, error) {
	t.Helper()
	sub, rest, err := remoteCmd.Find(args)
	if err != nil {
		t.Fatalf("find %v: %v", args, err)
	}
	var buf bytes.Buffer
	sub.SetOut(&buf)
	err = sub.RunE(sub, rest)
	return buf.String(), err
}

func TestRemotesConfig_Methods(t *testing.T) {
	cfg := RemotesConfig{Remotes: map[string]Remote{}}

	if _, _, err := cfg.resolve(""); err != errNoActiveRemote {
		t.Fatalf("resolve with no active = %v", err)
	}
	if !cfg.put("lab", Remote{URL: "https://lab:3000"}) {
		t.Fatal("first put should report a new remote")
	}
	if cfg.put("lab", Remote{URL: "https://lab:3443"}) {
		t.Fatal("second put of the same name should report an update")
	}
	cfg.put("attic", Remote{URL: "http://attic:3000"})
	if cfg.Active != "lab" {
		t.Errorf("Active = %q, want first remote", cfg.Active)
	}
	if got := cfg.names(); len(got) != 2 || got[0] != "attic" || got[1] != "lab" {
		t.Errorf("names = %v", got)
	}
	name, r, err := cfg.resolve("")
	if err != nil || name != "lab" || r.URL != "https://lab:3443" {
		t.Errorf("resolve active = %q %+v %v", name, r, err)
	}
	if err := cfg.remove("lab"); err != nil || cfg.Active != "" {
		t.Errorf("remove active: err=%v Active=%q", err, cfg.Active)
	}
	if err := cfg.remove("lab"); err == nil {
		t.Error("expected error removing twice")
	}
}

func TestRemoteValidate(t *testing.T) {
	tests := []struct {
		name    string
		remote  Remote
		wantErr string
	}{
		{"https", Remote{URL: "https://relay.lab:3000"}, ""},
		{"full", Remote{URL: "http://localhost:3000", GRPCAddr: "localhost:9090", NATSURL: "nats://localhost:4222"}, ""},
		{"websocket nats", Remote{URL: "http://x", NATSURL: "wss://bus.example.com"}, ""},
		{"no scheme", Remote{URL: "relay.lab:3000"}, "url"},
		{"ftp", Remote{URL: "ftp://relay.lab"}, "url"},
		{"grpc without port", Remote{URL: "http://x", GRPCAddr: "relay.lab"}, "grpc address"},
		{"nats wrong scheme", Remote{URL: "http://x", NATSURL: "http://bus:4222"}, "nats url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.remote.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolateState(t)

	in := RemotesConfig{
		Active: "lab",
		Remotes: map[string]Remote{
			"lab":   {URL: "https://relay.lab:3000", GRPCAddr: "relay.lab:9090", Token: "tok_abc", NATSURL: "nats://lab:4222"},
			"local": {URL: "http://localhost:3000"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "lab" || got.Remotes["lab"] != in.Remotes["lab"] || got.Remotes["local"] != in.Remotes["local"] {
		t.Errorf("round trip = %+v", got)
	}
}

func TestRemoteConfigPath(t *testing.T) {
	isolateState(t)

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	if !strings.HasSuffix(path, filepath.Join(".local", "state", "motionrelay", "remotes.toml")) {
		t.Errorf("path = %q", path)
	}
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}

	xdg := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdg)
	path, _ = remoteConfigPath()
	if path != filepath.Join(xdg, "motionrelay", "remotes.toml") {
		t.Errorf("XDG path = %q", path)
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	isolateState(t)

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || cfg.Remotes == nil || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestRemoteCommands(t *testing.T) {
	isolateState(t)

	out, err := runRemote(t, "add", "local", "http://localhost:3000/")
	if err != nil {
		t.Fatal(err)
	}
	if out != "remote \"local\" added (http://localhost:3000), active\n" {
		t.Errorf("add output = %q", out)
	}
	if _, err := runRemote(t, "add", "lab", "https://relay.lab:3000"); err != nil {
		t.Fatal(err)
	}
	if out, _ := runRemote(t, "add", "lab", "https://relay.lab:3443"); !strings.Contains(out, "updated") {
		t.Errorf("re-add output = %q", out)
	}
	if _, err := runRemote(t, "add", "bad", "relay.lab"); err == nil {
		t.Error("expected invalid URL to be rejected")
	}

	if _, err := runRemote(t, "use", "lab"); err != nil {
		t.Fatal(err)
	}
	out, _ = runRemote(t, "list")
	if !strings.Contains(out, "* lab") || !strings.Contains(out, "  local") {
		t.Errorf("list missing markers:\n%s", out)
	}
	if strings.Index(out, "lab") > strings.Index(out, "local") {
		t.Errorf("list not sorted by name:\n%s", out)
	}

	out, _ = runRemote(t, "show")
	if !strings.Contains(out, "lab (active)") || !strings.Contains(out, "https://relay.lab:3443") {
		t.Errorf("show active:\n%s", out)
	}
	out, _ = runRemote(t, "show", "local")
	if strings.Contains(out, "(active)") {
		t.Errorf("show by name marked inactive remote active:\n%s", out)
	}

	out, err = runRemote(t, "remove", "lab")
	if err != nil || !strings.Contains(out, "no remote is active") {
		t.Errorf("remove active: %q %v", out, err)
	}
	cfg, _ := loadRemotesConfig()
	if _, ok := cfg.Remotes["lab"]; ok || cfg.Active != "" {
		t.Errorf("after remove: %+v", cfg)
	}
}

func TestRemoteTokenMasking(t *testing.T) {
	isolateState(t)

	if err := remoteAddCmd.Flags().Set("token", "tok_verylongsecret"); err != nil {
		t.Fatalf("set token flag: %v", err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("token", "") })
	if _, err := runRemote(t, "add", "lab", "https://relay.lab:3000"); err != nil {
		t.Fatal(err)
	}

	for _, sub := range []string{"list", "show"} {
		out, err := runRemote(t, sub)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(out, "tok_verylongsecret") {
			t.Errorf("%s printed the full token", sub)
		}
		if !strings.Contains(out, "tok_**************") {
			t.Errorf("%s missing masked token:\n%s", sub, out)
		}
	}

	if got := maskToken("short"); got != "*****" {
		t.Errorf("maskToken(short) = %q", got)
	}
}

func TestRemotePing(t *testing.T) {
	isolateState(t)
	_, url := startRelay(t)

	if _, err := runRemote(t, "add", "local", url); err != nil {
		t.Fatal(err)
	}
	out, err := runRemote(t, "ping")
	if err != nil {
		t.Fatalf("ping: %v\n%s", err, out)
	}
	if !strings.Contains(out, "local http "+url+": ok") {
		t.Errorf("ping output = %q", out)
	}

	if _, err := runRemote(t, "add", "gone", "http://127.0.0.1:1"); err != nil {
		t.Fatal(err)
	}
	if _, err := runRemote(t, "ping", "gone"); err == nil {
		t.Error("expected ping of an unreachable relay to fail")
	}
}

func TestRemoteErrorCases(t *testing.T) {
	tests := [][]string{
		{"use", "ghost"},
		{"remove", "ghost"},
		{"show"},
		{"show", "ghost"},
		{"ping"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			isolateState(t)
			if _, err := runRemote(t, args...); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
