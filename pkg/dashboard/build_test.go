package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/config"
	"gitlab.com/tinyland/lab/livedash/pkg/credentials"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/k8s"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(cache.StoreConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func oneShot(views ...config.ViewConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Views = views
	return cfg
}

func TestBuildDemoPreset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preset = "demo"

	views, err := Build(cfg, Deps{Logger: quiet()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(views) != 1 || views[0].Name() != "demo" {
		t.Fatalf("views = %v", views)
	}

	if err := views[0].Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	got := views[0].Snapshot().Data["stats"]
	if diff := cmp.Diff(DemoData("stats"), got); diff != "" {
		t.Errorf("demo data mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := oneShot(config.ViewConfig{Name: "x"})
	if _, err := Build(cfg, Deps{Logger: quiet()}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildHTTPUsesStoredToken(t *testing.T) {
	t.Setenv(credentials.TokenEnv, "")
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"total": 10, "active": 7}`))
	}))
	defer srv.Close()

	store := newStore(t)
	if err := credentials.NewStored(store).SetToken(context.Background(), "saved"); err != nil {
		t.Fatal(err)
	}

	cfg := oneShot(config.ViewConfig{
		Name:      "summary",
		Resources: []config.ResourceConfig{{Name: "stats", Kind: config.KindHTTP, Path: "/stats"}},
	})
	cfg.API.BaseURL = srv.URL

	reg := resources.NewRegistry()
	views, err := Build(cfg, Deps{Store: store, Registry: reg, Logger: quiet()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := views[0].Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if auth != "Bearer saved" {
		t.Errorf("Authorization = %q", auth)
	}

	st, ok := reg.Status("summary/stats")
	if !ok || st.RunCount != 1 || !st.Healthy {
		t.Errorf("registry status = %+v, %v", st, ok)
	}
}

func TestCredentialsOrder(t *testing.T) {
	ctx := context.Background()
	t.Setenv(credentials.TokenEnv, "")
	store := newStore(t)
	_ = credentials.NewStored(store).SetToken(ctx, "saved")

	cfg := config.DefaultConfig()
	if tok, _ := Credentials(cfg, store).Token(ctx); tok != "saved" {
		t.Errorf("stored only: Token = %q, want saved", tok)
	}

	cfg.API.Token = "from-config"
	if tok, _ := Credentials(cfg, store).Token(ctx); tok != "from-config" {
		t.Errorf("config over stored: Token = %q, want from-config", tok)
	}

	t.Setenv(credentials.TokenEnv, "from-env")
	tok, err := Credentials(cfg, store).Token(ctx)
	if err != nil || tok != "from-env" {
		t.Errorf("env over config: Token = %q, %v", tok, err)
	}
}

func TestBuildK8sFailureBecomesUnavailable(t *testing.T) {
	boom := errors.New("no kubeconfig")
	cfg := oneShot(config.ViewConfig{
		Name:      "cluster",
		Resources: []config.ResourceConfig{{Name: "cluster", Kind: config.KindK8s}},
	})

	views, err := Build(cfg, Deps{
		Logger:       quiet(),
		NewClientset: func(k8s.Config) (kubernetes.Interface, error) { return nil, boom },
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := views[0].Retry(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Retry = %v, want %v", err, boom)
	}
}

func TestBuildK8sWithFakeClientset(t *testing.T) {
	cfg := oneShot(config.ViewConfig{
		Name:      "cluster",
		Resources: []config.ResourceConfig{{Name: "cluster", Kind: config.KindK8s, Namespace: "agents"}},
	})

	var gotNS string
	views, err := Build(cfg, Deps{
		Logger: quiet(),
		NewClientset: func(kc k8s.Config) (kubernetes.Interface, error) {
			gotNS = kc.Namespace
			return fake.NewClientset(), nil
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if gotNS != "agents" {
		t.Errorf("namespace = %q", gotNS)
	}
	if err := views[0].Retry(context.Background()); err != nil {
		t.Errorf("Retry: %v", err)
	}
}

func TestBuildUseMocks(t *testing.T) {
	cfg := config.DefaultConfig() // agents preset, no base URL
	cfg.API.BaseURL = "http://unused.invalid"

	views, err := Build(cfg, Deps{Logger: quiet(), UseMocks: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, v := range views {
		if err := v.Retry(context.Background()); err != nil {
			t.Errorf("%s: Retry: %v", v.Name(), err)
		}
	}
}

func TestMountAllContinuesAfterFailure(t *testing.T) {
	bad := refresher.New("bad", []resources.Resource{
		resources.NewMockResource("r", resources.WithError(errors.New("down"))),
	}, refresher.WithLogger(quiet()))
	good := refresher.New("good", []resources.Resource{resources.NewMockResource("r")},
		refresher.WithLogger(quiet()))

	m := refresher.NewManager()
	defer m.StopAll(context.Background())

	if err := MountAll(context.Background(), m, []*refresher.View{bad, good}, quiet()); err != nil {
		t.Fatalf("MountAll: %v", err)
	}
	if diff := cmp.Diff([]string{"bad", "good"}, m.List()); diff != "" {
		t.Errorf("mounted views (-want +got):\n%s", diff)
	}

	dup := refresher.New("good", nil, refresher.WithLogger(quiet()))
	err := MountAll(context.Background(), m, []*refresher.View{dup}, quiet())
	if !errors.Is(err, refresher.ErrAlreadyMounted) {
		t.Errorf("MountAll duplicate = %v", err)
	}
}

func TestDemoDataDefaults(t *testing.T) {
	m, ok := DemoData("anything").(map[string]interface{})
	if !ok || m["total"] != 10 {
		t.Errorf("DemoData = %v", DemoData("anything"))
	}
	if _, ok := DemoData("agents").([]interface{}); !ok {
		t.Error("agents demo data should be a list")
	}
	if !strings.Contains(strings.Join(config.PresetNames, ","), "demo") {
		t.Error("demo preset missing from PresetNames")
	}
}
