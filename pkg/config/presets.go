package config

import "time"

// PresetNames lists the built-in view sets.
var PresetNames = []string{"agents", "ops", "demo"}

// ViewPreset returns the views of a named preset. Unknown names fall back
// to "agents".
func ViewPreset(name string) []ViewConfig {
	switch name {
	case "ops":
		return opsPreset()
	case "demo":
		return demoPreset()
	default:
		return agentsPreset()
	}
}

// agentsPreset polls the agent backend every 30s.
//
//	summary: GET /api/v1/agents/stats/summary
//	agents:  GET /api/v1/agents?limit=50
func agentsPreset() []ViewConfig {
	return []ViewConfig{
		{
			Name:     "summary",
			Title:    "Agent summary",
			Interval: Duration{30 * time.Second},
			Resources: []ResourceConfig{
				{Name: "stats", Kind: KindHTTP, Path: "/api/v1/agents/stats/summary"},
			},
		},
		{
			Name:     "agents",
			Title:    "Agents",
			Interval: Duration{30 * time.Second},
			Resources: []ResourceConfig{
				{Name: "agents", Kind: KindHTTP, Path: "/api/v1/agents", Query: map[string]string{"limit": "50"}},
			},
		},
	}
}

// opsPreset watches the local host, the tailnet and the current cluster.
func opsPreset() []ViewConfig {
	return []ViewConfig{
		{
			Name:      "host",
			Title:     "Host",
			Interval:  Duration{5 * time.Second},
			Resources: []ResourceConfig{{Name: "system", Kind: KindSysMetrics}},
		},
		{
			Name:      "tailnet",
			Title:     "Tailnet",
			Interval:  Duration{30 * time.Second},
			Resources: []ResourceConfig{{Name: "tailnet", Kind: KindTailscale}},
		},
		{
			Name:      "cluster",
			Title:     "Cluster",
			Interval:  Duration{time.Minute},
			Resources: []ResourceConfig{{Name: "cluster", Kind: KindK8s}},
		},
	}
}

// demoPreset needs no backend.
func demoPreset() []ViewConfig {
	return []ViewConfig{
		{
			Name:      "demo",
			Title:     "Demo",
			Interval:  Duration{10 * time.Second},
			Resources: []ResourceConfig{{Name: "stats", Kind: KindMock}},
		},
	}
}
