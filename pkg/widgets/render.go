package widgets

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"gitlab.com/tinyland/lab/livedash/pkg/resources/k8s"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/sysmetrics"
	"gitlab.com/tinyland/lab/livedash/pkg/resources/tailscale"
)

// preferred leading columns of a record table
var tableLead = []string{"name", "id", "status"}

const maxTableColumns = 5

// RenderValue turns one resource result into display lines no wider than
// width. The shape of the value picks the renderer.
func RenderValue(value interface{}, width int) []string {
	switch v := value.(type) {
	case nil:
		return []string{dim("no data")}
	case map[string]interface{}:
		return StatsCard(v, width)
	case []interface{}:
		return RecordTable(v, width)
	case sysmetrics.Sample:
		return sampleLines(v, width)
	case *sysmetrics.Sample:
		return sampleLines(*v, width)
	case tailscale.Summary:
		return tailnetLines(v, width)
	case *tailscale.Summary:
		return tailnetLines(*v, width)
	case k8s.Summary:
		return clusterLines(v, width)
	case *k8s.Summary:
		return clusterLines(*v, width)
	}
	return Wrap(FormatScalar(value), width)
}

// StatsCard renders an object as "label  value" rows. Nested objects are
// flattened one level with dotted labels; arrays show their length.
func StatsCard(obj map[string]interface{}, width int) []string {
	type row struct{ label, value string }
	var rows []row
	for k, v := range obj {
		switch x := v.(type) {
		case map[string]interface{}:
			for nk, nv := range x {
				rows = append(rows, row{Label(k) + "." + Label(nk), inlineValue(nv)})
			}
		default:
			rows = append(rows, row{Label(k), inlineValue(x)})
		}
	}
	if len(rows) == 0 {
		return []string{dim("empty")}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].label < rows[j].label })

	labelW := 0
	for _, r := range rows {
		if w := ansi.StringWidth(r.label); w > labelW {
			labelW = w
		}
	}
	if labelW > width/2 {
		labelW = width / 2
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		label := FitLine(r.label, labelW)
		lines = append(lines, dim(label)+"  "+colored(ColorAccent, r.value))
	}
	return lines
}

func inlineValue(v interface{}) string {
	switch x := v.(type) {
	case []interface{}:
		return fmt.Sprintf("%d items", len(x))
	case map[string]interface{}:
		return fmt.Sprintf("%d fields", len(x))
	}
	return FormatScalar(v)
}

// RecordTable renders an array of objects as a table. Columns are the union
// of keys, with name, id and status first, capped to what fits.
func RecordTable(items []interface{}, width int) []string {
	if len(items) == 0 {
		return []string{dim("no items")}
	}

	var records []map[string]interface{}
	for _, it := range items {
		rec, ok := it.(map[string]interface{})
		if !ok {
			lines := make([]string, 0, len(items))
			for _, x := range items {
				lines = append(lines, "• "+inlineValue(x))
			}
			return lines
		}
		records = append(records, rec)
	}

	cols := tableColumns(records)
	if len(cols) == 0 {
		return []string{dim(fmt.Sprintf("%d items", len(items)))}
	}

	cells := make([][]string, len(records))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = ansi.StringWidth(c)
	}
	for r, rec := range records {
		cells[r] = make([]string, len(cols))
		for i, c := range cols {
			s := inlineValue(rec[c])
			cells[r][i] = s
			if w := ansi.StringWidth(s); w > widths[i] {
				widths[i] = w
			}
		}
	}
	shrinkColumns(widths, width)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = PadRight(ansi.Truncate(strings.ToUpper(Label(c)), widths[i], "…"), widths[i])
	}
	lines := []string{colored(ColorAccent, strings.Join(header, " "))}
	for _, row := range cells {
		parts := make([]string, len(row))
		for i, s := range row {
			parts[i] = PadRight(ansi.Truncate(s, widths[i], "…"), widths[i])
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

func tableColumns(records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var rest []string
	for _, rec := range records {
		for k, v := range rec {
			if seen[k] || !IsScalar(v) {
				continue
			}
			seen[k] = true
			rest = append(rest, k)
		}
	}
	var cols []string
	for _, k := range tableLead {
		if seen[k] {
			cols = append(cols, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		lead := false
		for _, l := range tableLead {
			lead = lead || k == l
		}
		if !lead {
			cols = append(cols, k)
		}
	}
	if len(cols) > maxTableColumns {
		cols = cols[:maxTableColumns]
	}
	return cols
}

// shrinkColumns narrows the widest column until the row (with single
// spaces between cells) fits width. No column drops below 3 cells.
func shrinkColumns(widths []int, width int) {
	total := func() int {
		t := len(widths) - 1
		for _, w := range widths {
			t += w
		}
		return t
	}
	for total() > width {
		widest := 0
		for i, w := range widths {
			if w > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 3 {
			return
		}
		widths[widest]--
	}
}

func sampleLines(s sysmetrics.Sample, width int) []string {
	barW := width - 24
	if barW > 30 {
		barW = 30
	}
	lines := []string{
		gaugeLine("CPU", s.CPUPercent, barW) + dim(fmt.Sprintf(" %d cores", s.CPUCount)),
		gaugeLine("MEM", s.MemPercent, barW) + dim(fmt.Sprintf(" %s/%s",
			humanize.IBytes(s.MemUsed), humanize.IBytes(s.MemTotal))),
	}
	for _, d := range s.Disks {
		lines = append(lines, gaugeLine(diskLabel(d.Path), d.UsedPercent, barW)+
			dim(fmt.Sprintf(" %s/%s", humanize.IBytes(d.Used), humanize.IBytes(d.Total))))
	}
	lines = append(lines,
		dim("load ")+fmt.Sprintf("%.2f %.2f %.2f", s.Load1, s.Load5, s.Load15),
		dim("up   ")+FormatUptime(s.Uptime.Seconds()),
	)
	return lines
}

func diskLabel(path string) string {
	if path == "/" {
		return "DSK"
	}
	return ansi.Truncate(path, 3, "")
}

// gaugeLine renders "LBL [████░░░░]  42%" with threshold colors.
func gaugeLine(label string, percent float64, barW int) string {
	pct := math.Max(0, math.Min(100, percent))
	bar := ""
	if barW >= 4 {
		filled := int(math.Round(pct / 100 * float64(barW)))
		color := ColorOK
		switch {
		case pct >= 90:
			color = ColorError
		case pct >= 70:
			color = ColorWarn
		}
		bar = " " + colored(color, strings.Repeat("█", filled)) +
			dim(strings.Repeat("░", barW-filled))
	}
	return fmt.Sprintf("%-3s%s %3.0f%%", label, bar, pct)
}

// FormatUptime renders seconds as "3d 4h", "4h 12m" or "12m".
func FormatUptime(secs float64) string {
	total := int64(secs)
	days := total / 86400
	hours := (total % 86400) / 3600
	mins := (total % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func tailnetLines(s tailscale.Summary, width int) []string {
	head := fmt.Sprintf("%s  %s", s.Tailnet, s.Backend)
	lines := []string{
		colored(ColorAccent, head),
		dim("self ") + s.Self.Hostname + " " + dim(s.Self.IP),
		fmt.Sprintf("%d/%d peers online", s.Online, s.Total),
	}
	for _, p := range s.Peers {
		mark := colored(ColorOK, "●")
		if !p.Online {
			mark = dim("○")
		}
		line := mark + " " + p.Hostname + " " + dim(p.OS)
		if p.ExitNode {
			line += " " + colored(ColorWarn, "exit")
		}
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return lines
}

func clusterLines(s k8s.Summary, width int) []string {
	lines := []string{}
	if s.Context != "" {
		lines = append(lines, colored(ColorAccent, s.Context))
	}
	lines = append(lines,
		fmt.Sprintf("%s %d/%d ready", dim("nodes"), s.ReadyNodes, s.Nodes),
		fmt.Sprintf("%s %d running  %d pending  %d failed", dim("pods "),
			s.Pods.Running, s.Pods.Pending, s.Pods.Failed),
	)
	for _, d := range s.Deployments {
		color := ColorOK
		if !d.Healthy() {
			color = ColorError
		}
		line := fmt.Sprintf("%s %s/%s", colored(color, fmt.Sprintf("%d/%d", d.Ready, d.Desired)), d.Namespace, d.Name)
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return lines
}
