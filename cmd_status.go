package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/daemon"
	"gitlab.com/tinyland/lab/livedash/pkg/terminal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type statusOptions struct {
	JSON bool
}

func newStatusCmd() *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of every view",
		Long: `status asks a running serve over its control socket. When none is
running it falls back to health.json and the cached snapshots.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the health document as JSON")
	return cmd
}

// statusRow is one printed line.
type statusRow struct {
	View        string
	State       string
	Tick        uint64
	AutoRefresh bool
	LastSuccess time.Time
	Error       string
	Cached      bool
}

func runStatus(w io.Writer, opts *statusOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	health, live := liveHealth(socketPath(cfg))
	if health == nil {
		health, err = daemon.ReadHealthFile(healthPath(cfg))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var snaps []daemon.SnapshotRecord
	if store, err := openStore(cfg); err == nil {
		snaps = daemon.LoadSnapshots(store)
	}

	if opts.JSON {
		if health == nil {
			health = &daemon.HealthStatus{}
		}
		data, err := json.MarshalIndent(health, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	rows := collectStatus(health, snaps)
	if len(rows) == 0 {
		fmt.Fprintln(w, "no views recorded; start `livedash serve` first")
		return nil
	}

	info := terminal.Detect(w)
	header := "serve not running"
	if live {
		up := strings.TrimSpace(humanize.RelTime(health.StartedAt, time.Now(), "", ""))
		header = fmt.Sprintf("serve running (PID %d, up %s)", health.PID, up)
	} else if health != nil && !health.UpdatedAt.IsZero() {
		header = "last health update " + humanize.Time(health.UpdatedAt)
	}
	fmt.Fprintln(w, header)
	renderStatus(w, rows, time.Now(), info.Profile, info.Width)
	return nil
}

// liveHealth asks a running serve for its health. The bool reports whether
// one answered.
func liveHealth(socket string) (*daemon.HealthStatus, bool) {
	if _, err := os.Stat(socket); err != nil {
		return nil, false
	}
	c := daemon.NewIPCClient(socket)
	resp, err := c.SendCommand("HEALTH")
	if err != nil {
		return nil, false
	}
	var h daemon.HealthStatus
	if err := json.Unmarshal([]byte(resp), &h); err != nil {
		return nil, false
	}
	return &h, true
}

// collectStatus merges health views with cached snapshots. Health wins; a
// snapshot only adds views health does not know about.
func collectStatus(health *daemon.HealthStatus, snaps []daemon.SnapshotRecord) []statusRow {
	seen := make(map[string]bool)
	var rows []statusRow
	if health != nil {
		for _, v := range health.Views {
			seen[v.Name] = true
			rows = append(rows, statusRow{
				View:        v.Name,
				State:       v.State,
				Tick:        v.Tick,
				AutoRefresh: v.AutoRefresh,
				LastSuccess: v.LastSuccess,
				Error:       v.Error,
			})
		}
	}
	for _, s := range snaps {
		if seen[s.View] {
			continue
		}
		rows = append(rows, statusRow{
			View:        s.View,
			State:       s.State,
			Tick:        s.Tick,
			LastSuccess: s.LastSuccess,
			Error:       s.Error,
			Cached:      true,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].View < rows[j].View })
	return rows
}

// renderStatus prints one line per view. width 0 means no truncation.
func renderStatus(w io.Writer, rows []statusRow, now time.Time, profile termenv.Profile, width int) {
	out := termenv.NewOutput(w, termenv.WithProfile(profile))

	nameW := 0
	for _, r := range rows {
		nameW = max(nameW, len(r.View))
	}

	for _, r := range rows {
		mark, hex := "●", "#4CAF50"
		switch r.State {
		case "error":
			mark, hex = "✗", "#EF4444"
		case "loading", "idle":
			mark, hex = "○", "#A78BFA"
		case "stopped":
			mark, hex = "■", "#9CA3AF"
		}

		updated := "never"
		if !r.LastSuccess.IsZero() {
			updated = humanize.RelTime(r.LastSuccess, now, "ago", "from now")
		}
		mode := "auto"
		if !r.AutoRefresh {
			mode = "manual"
		}
		if r.Cached {
			mode = "cached"
		}

		line := fmt.Sprintf("%s %-*s  %-7s  tick %-4d  %-6s  updated %s",
			out.String(mark).Foreground(out.Color(hex)).String(),
			nameW, r.View, r.State, r.Tick, mode, updated)
		if r.Error != "" {
			line += "  " + out.String(r.Error).Foreground(out.Color("#EF4444")).String()
		}
		if width > 0 {
			line = ansi.Truncate(line, width, "…")
		}
		fmt.Fprintln(w, line)
	}
}
