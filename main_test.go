package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/daemon"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// testConfig writes a config whose cache dir lives in a temp dir and
// returns the config path and the cache dir.
func testConfig(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("LIVEDASH_TOKEN", "")
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	path := filepath.Join(dir, "config.toml")
	content := "[general]\ncache_dir = \"" + cacheDir + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, cacheDir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"ctl", "serve", "status", "token", "tui", "version"}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"config", "verbose", "use-mocks"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("global flag --%s missing", flag)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "livedash "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestTokenLifecycle(t *testing.T) {
	cfgPath, _ := testConfig(t)

	out, err := execute(t, "", "--config", cfgPath, "token", "show")
	if err != nil || strings.TrimSpace(out) != "no token" {
		t.Fatalf("initial show = %q, %v", out, err)
	}

	if _, err := execute(t, "", "--config", cfgPath, "token", "set", "secret-abcd"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err = execute(t, "", "--config", cfgPath, "token", "show")
	if err != nil || strings.TrimSpace(out) != "stored: *******abcd" {
		t.Fatalf("show after set = %q, %v", out, err)
	}

	if _, err := execute(t, "from-stdin-wxyz\n", "--config", cfgPath, "token", "set", "-"); err != nil {
		t.Fatalf("set from stdin: %v", err)
	}
	out, _ = execute(t, "", "--config", cfgPath, "token", "show")
	if !strings.HasSuffix(strings.TrimSpace(out), "wxyz") {
		t.Errorf("stdin token not stored: %q", out)
	}

	if _, err := execute(t, "", "--config", cfgPath, "token", "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, _ = execute(t, "", "--config", cfgPath, "token", "show")
	if strings.TrimSpace(out) != "no token" {
		t.Errorf("show after clear = %q", out)
	}

	if _, err := execute(t, "  \n", "--config", cfgPath, "token", "set"); err == nil {
		t.Error("empty token accepted")
	}
}

func TestTokenShowSourceOrder(t *testing.T) {
	cfgPath, cacheDir := testConfig(t)
	if _, err := execute(t, "", "--config", cfgPath, "token", "set", "stored-0000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	withToken := filepath.Join(filepath.Dir(cacheDir), "with-token.toml")
	body := "[general]\ncache_dir = \"" + cacheDir + "\"\n\n[api]\ntoken = \"config-5678\"\n"
	if err := os.WriteFile(withToken, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "--config", withToken, "token", "show")
	if err != nil || strings.TrimSpace(out) != "config: *******5678" {
		t.Errorf("config show = %q, %v", out, err)
	}

	t.Setenv("LIVEDASH_TOKEN", "env-token-1234")
	out, err = execute(t, "", "--config", withToken, "token", "show")
	if err != nil || strings.TrimSpace(out) != "env: **********1234" {
		t.Errorf("env show = %q, %v", out, err)
	}

	// Writes skip the read-only variable and still reach the store.
	if _, err := execute(t, "", "--config", cfgPath, "token", "clear"); err != nil {
		t.Fatalf("clear with env set: %v", err)
	}
	t.Setenv("LIVEDASH_TOKEN", "")
	out, _ = execute(t, "", "--config", cfgPath, "token", "show")
	if strings.TrimSpace(out) != "no token" {
		t.Errorf("show after clear = %q", out)
	}
}

func TestMaskToken(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"abc":      "***",
		"abcdefgh": "****efgh",
	}
	for in, want := range tests {
		if got := maskToken(in); got != want {
			t.Errorf("maskToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusWithoutData(t *testing.T) {
	cfgPath, _ := testConfig(t)
	out, err := execute(t, "", "--config", cfgPath, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no views recorded") {
		t.Errorf("status output = %q", out)
	}
}

func TestStatusMergesHealthAndSnapshots(t *testing.T) {
	cfgPath, cacheDir := testConfig(t)
	now := time.Now()

	health := &daemon.HealthStatus{
		PID:       1,
		StartedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Minute),
		Views: []daemon.ViewHealth{
			{Name: "summary", State: "error", Tick: 4, AutoRefresh: true, Error: "stats: GET /x: 502 Bad Gateway"},
		},
	}
	if err := daemon.WriteHealthFile(filepath.Join(cacheDir, "health.json"), health); err != nil {
		t.Fatal(err)
	}

	store, err := cache.NewStore(cache.StoreConfig{Dir: filepath.Join(cacheDir, "store")})
	if err != nil {
		t.Fatal(err)
	}
	snaps := []refresher.Snapshot{
		{View: "summary", State: refresher.StateSuccess, Tick: 1},
		{View: "host", State: refresher.StateSuccess, Tick: 9, LastSuccess: now.Add(-2 * time.Minute)},
	}
	for _, s := range snaps {
		if err := daemon.SaveSnapshot(store, s, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	out, err := execute(t, "", "--config", cfgPath, "status")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "last health update") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "host") || !strings.Contains(lines[1], "cached") || !strings.Contains(lines[1], "2 minutes ago") {
		t.Errorf("host line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "summary") || !strings.Contains(lines[2], "tick 4") || !strings.Contains(lines[2], "502") {
		t.Errorf("summary line = %q", lines[2])
	}

	out, err = execute(t, "", "--config", cfgPath, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got daemon.HealthStatus
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("json output: %v\n%s", err, out)
	}
	if len(got.Views) != 1 || got.Views[0].Name != "summary" {
		t.Errorf("json views = %+v", got.Views)
	}
}

func TestRenderStatusTruncates(t *testing.T) {
	var buf bytes.Buffer
	rows := []statusRow{{View: "a", State: "error", Error: strings.Repeat("x", 200)}}
	renderStatus(&buf, rows, time.Now(), termenv.Ascii, 40)
	line := strings.TrimRight(buf.String(), "\n")
	if n := len([]rune(line)); n > 40 {
		t.Errorf("line has %d runes, want <= 40", n)
	}
}

func TestCtlWithoutServe(t *testing.T) {
	cfgPath, _ := testConfig(t)
	_, err := execute(t, "", "--config", cfgPath, "ctl", "HEALTH")
	if err == nil || !strings.Contains(err.Error(), "connect to daemon") {
		t.Errorf("ctl err = %v", err)
	}
}
