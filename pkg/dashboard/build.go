// Package dashboard turns configuration into mounted refresher views. It
// owns the mapping from resource kinds to implementations.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/config"
	"gitlab.com/tinyland/lab/livedash/pkg/credentials"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/httpjson"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/k8s"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/sysmetrics"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/tailscale"
)

// Deps carries everything the builder needs besides the config. Zero
// values select production defaults.
type Deps struct {
	Store      *cache.Store
	Registry   *resources.Registry
	Logger     *slog.Logger
	Clock      clock.WithTicker
	HTTPClient *http.Client

	// UseMocks replaces every resource with a mock of the same name.
	UseMocks bool

	// OnUpdate and OnError are attached to every view.
	OnUpdate func(refresher.Snapshot)
	OnError  func(view string, err error)

	// NewClientset and NewTailscale override client construction in tests.
	NewClientset func(k8s.Config) (kubernetes.Interface, error)
	NewTailscale func(socket string) tailscale.StatusClient
}

// Credentials returns the token chain: LIVEDASH_TOKEN first, then the
// configured token, then the token saved with `livedash token set`.
func Credentials(cfg *config.Config, store *cache.Store) credentials.Provider {
	chain := credentials.Chain{credentials.Env{Var: credentials.TokenEnv}}
	if cfg.API.Token != "" {
		chain = append(chain, credentials.NewStatic(cfg.API.Token))
	}
	if store != nil {
		chain = append(chain, credentials.NewStored(store))
	}
	return chain
}

// Build creates one view per configured view. Views are not started.
func Build(cfg *config.Config, d Deps) ([]*refresher.View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Registry == nil {
		d.Registry = resources.NewRegistry()
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: cfg.API.Timeout.Duration}
	}
	if d.NewClientset == nil {
		d.NewClientset = k8s.NewClientset
	}
	if d.NewTailscale == nil {
		d.NewTailscale = func(socket string) tailscale.StatusClient {
			return tailscale.NewLocalClient(socket)
		}
	}
	creds := Credentials(cfg, d.Store)

	var views []*refresher.View
	for _, vc := range cfg.ResolvedViews() {
		var res []resources.Resource
		for _, rc := range vc.Resources {
			r := buildResource(cfg, rc, creds, d)
			if err := d.Registry.RegisterAs(vc.Name+"/"+r.Name(), r); err != nil {
				return nil, fmt.Errorf("dashboard: view %s: %w", vc.Name, err)
			}
			res = append(res, r)
		}
		views = append(views, refresher.New(vc.Name, res, viewOptions(vc, d)...))
	}
	return views, nil
}

func viewOptions(vc config.ViewConfig, d Deps) []refresher.Option {
	schedule, _ := refresher.ParseSchedule(vc.Schedule)
	policy, _ := refresher.ParseErrorPolicy(vc.OnError)

	opts := []refresher.Option{
		refresher.WithInterval(vc.Interval.Duration),
		refresher.WithAutoRefresh(vc.AutoRefreshEnabled()),
		refresher.WithSchedule(schedule),
		refresher.WithErrorPolicy(policy),
		refresher.WithTimeout(vc.Timeout.Duration),
		refresher.WithLogger(d.Logger),
		refresher.WithRecorder(resources.Prefixed(d.Registry, vc.Name+"/")),
	}
	if d.Clock != nil {
		opts = append(opts, refresher.WithClock(d.Clock))
	}
	if d.OnUpdate != nil {
		opts = append(opts, refresher.OnUpdate(d.OnUpdate))
	}
	if d.OnError != nil {
		name := vc.Name
		opts = append(opts, refresher.OnError(func(err error) { d.OnError(name, err) }))
	}
	return opts
}

// buildResource never fails: a source that cannot be constructed becomes
// an Unavailable resource so its view reports the reason on every tick.
func buildResource(cfg *config.Config, rc config.ResourceConfig, creds credentials.Provider, d Deps) resources.Resource {
	if d.UseMocks || rc.Kind == config.KindMock {
		return resources.NewMockResource(rc.Name, resources.WithData(DemoData(rc.Name)))
	}

	switch rc.Kind {
	case config.KindHTTP:
		r, err := httpjson.New(httpjson.Config{
			Name:    rc.Name,
			BaseURL: cfg.API.BaseURL,
			Path:    rc.Path,
			Query:   rc.Query,
		}, httpjson.WithHTTPClient(d.HTTPClient), httpjson.WithCredentials(creds))
		if err != nil {
			return resources.Unavailable(rc.Name, err)
		}
		return r

	case config.KindSysMetrics:
		var opts []sysmetrics.Option
		if len(rc.Mounts) > 0 {
			opts = append(opts, sysmetrics.WithMounts(rc.Mounts...))
		}
		return sysmetrics.New(rc.Name, opts...)

	case config.KindK8s:
		kc := k8s.Config{Kubeconfig: rc.Kubeconfig, Context: rc.Context, Namespace: rc.Namespace}
		cs, err := d.NewClientset(kc)
		if err != nil {
			d.Logger.Warn("kubernetes unavailable", "resource", rc.Name, "error", err)
			return resources.Unavailable(rc.Name, err)
		}
		return k8s.New(rc.Name, kc, cs)

	case config.KindTailscale:
		return tailscale.New(rc.Name, d.NewTailscale(rc.Socket))
	}
	return resources.Unavailable(rc.Name, fmt.Errorf("unknown kind %q", rc.Kind))
}

// MountAll mounts every view. A failing initial tick is logged and does not
// stop the remaining views from mounting.
func MountAll(ctx context.Context, m *refresher.Manager, views []*refresher.View, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for _, v := range views {
		err := m.Mount(ctx, v)
		switch {
		case err == nil:
		case errors.Is(err, refresher.ErrAlreadyMounted), errors.Is(err, refresher.ErrClosed):
			errs = append(errs, err)
		default:
			logger.Warn("initial refresh failed", "view", v.Name(), "error", err)
		}
	}
	return errors.Join(errs...)
}

// DemoData is the canned payload served by mock resources.
func DemoData(name string) interface{} {
	switch name {
	case "agents":
		return []interface{}{
			map[string]interface{}{"name": "planner", "status": "active", "tasks": 12},
			map[string]interface{}{"name": "reviewer", "status": "idle", "tasks": 3},
		}
	case "system":
		return sysmetrics.Sample{CPUPercent: 12.5, CPUCount: 8, MemTotal: 16 << 30, MemUsed: 6 << 30, MemPercent: 37.5}
	}
	return map[string]interface{}{"total": 10, "active": 7}
}
