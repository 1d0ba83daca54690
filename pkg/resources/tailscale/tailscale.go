// Package tailscale provides a Resource summarising the tailnet as seen by
// the local tailscaled daemon.
package tailscale

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tailscale.com/client/local"
	"tailscale.com/ipn/ipnstate"
)

// StatusClient is the part of the LocalAPI client the resource uses.
// *local.Client satisfies it.
type StatusClient interface {
	Status(ctx context.Context) (*ipnstate.Status, error)
}

// NewLocalClient returns a LocalAPI client. An empty socket path selects the
// platform default.
func NewLocalClient(socketPath string) *local.Client {
	lc := &local.Client{}
	if socketPath != "" {
		lc.Socket = socketPath
	}
	return lc
}

// Peer is one node of the tailnet.
type Peer struct {
	Hostname string    `json:"hostname"`
	OS       string    `json:"os"`
	IP       string    `json:"ip,omitempty"`
	Online   bool      `json:"online"`
	ExitNode bool      `json:"exit_node"`
	LastSeen time.Time `json:"last_seen"`
}

// Summary is the fetched value.
type Summary struct {
	Backend string `json:"backend"`
	Tailnet string `json:"tailnet"`
	Self    Peer   `json:"self"`
	Online  int    `json:"online"`
	Total   int    `json:"total"`
	Peers   []Peer `json:"peers"`
}

// Resource reads tailnet status.
type Resource struct {
	name   string
	client StatusClient
}

// New returns a tailscale resource. An empty name defaults to "tailnet".
func New(name string, client StatusClient) *Resource {
	if name == "" {
		name = "tailnet"
	}
	return &Resource{name: name, client: client}
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Fetch queries the daemon. Peers are sorted online first, then by hostname.
func (r *Resource) Fetch(ctx context.Context) (interface{}, error) {
	st, err := r.client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailscale status: %w", err)
	}
	if st == nil {
		return nil, errors.New("tailscale status: empty response")
	}
	return summarize(st), nil
}

func summarize(st *ipnstate.Status) Summary {
	s := Summary{Backend: st.BackendState}
	if st.CurrentTailnet != nil {
		s.Tailnet = st.CurrentTailnet.Name
	}
	if st.Self != nil {
		s.Self = toPeer(st.Self)
	}
	for _, k := range st.Peers() {
		ps := st.Peer[k]
		if ps == nil {
			continue
		}
		p := toPeer(ps)
		if p.Online {
			s.Online++
		}
		s.Peers = append(s.Peers, p)
	}
	s.Total = len(s.Peers)
	sort.SliceStable(s.Peers, func(i, j int) bool {
		if s.Peers[i].Online != s.Peers[j].Online {
			return s.Peers[i].Online
		}
		return s.Peers[i].Hostname < s.Peers[j].Hostname
	})
	return s
}

func toPeer(ps *ipnstate.PeerStatus) Peer {
	p := Peer{
		Hostname: ps.HostName,
		OS:       ps.OS,
		Online:   ps.Online,
		ExitNode: ps.ExitNode,
		LastSeen: ps.LastSeen,
	}
	if len(ps.TailscaleIPs) > 0 {
		p.IP = ps.TailscaleIPs[0].String()
	}
	return p
}
