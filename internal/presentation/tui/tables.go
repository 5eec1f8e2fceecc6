package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/roster/pkg/domain"
)

// Replica pairs a session with the replica that published it.
type Replica struct {
	Name string
	Info domain.Info
}

// SessionTable renders sessions as a markdown table.
func SessionTable(infos []domain.Info, now time.Time) string {
	if len(infos) == 0 {
		return "_No live sessions._\n"
	}
	var b strings.Builder
	b.WriteString("| ID | User | Host | State | Command | Age |\n")
	b.WriteString("|---:|------|------|-------|---------|----:|\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			info.ID, cell(info.User), cell(info.Host), state(info), cell(info.Command), age(info, now))
	}
	return b.String()
}

// ReplicaTable renders mirrored sessions grouped by replica as a markdown table.
func ReplicaTable(rows []Replica, now time.Time) string {
	if len(rows) == 0 {
		return "_No live sessions in any replica._\n"
	}
	var b strings.Builder
	b.WriteString("| Replica | ID | User | Host | State | Age |\n")
	b.WriteString("|---------|---:|------|------|-------|----:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s |\n",
			cell(r.Name), r.Info.ID, cell(r.Info.User), cell(r.Info.Host), state(r.Info), age(r.Info, now))
	}
	return b.String()
}

// SessionDetail renders one session as a markdown list.
func SessionDetail(info domain.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Session %d\n\n", info.ID)
	fmt.Fprintf(&b, "- **User:** %s\n", info.User)
	fmt.Fprintf(&b, "- **Host:** %s\n", info.Host)
	fmt.Fprintf(&b, "- **State:** %s\n", state(info))
	if info.Command != "" {
		fmt.Fprintf(&b, "- **Command:** `%s`\n", info.Command)
	}
	if !info.StartedAt.IsZero() {
		fmt.Fprintf(&b, "- **Started:** %s\n", info.StartedAt.Format(time.RFC3339))
	}
	if !info.RegisteredAt.IsZero() {
		fmt.Fprintf(&b, "- **Registered:** %s\n", info.RegisteredAt.Format(time.RFC3339))
	}
	return b.String()
}

// StatsTable renders registry counters as a markdown table.
func StatsTable(s domain.Stats) string {
	var b strings.Builder
	b.WriteString("| Counter | Value |\n")
	b.WriteString("|---------|------:|\n")
	fmt.Fprintf(&b, "| sessions | %d |\n", s.Sessions)
	fmt.Fprintf(&b, "| threads running | %d |\n", s.ThreadsRunning)
	fmt.Fprintf(&b, "| threads created | %d |\n", s.ThreadsCreated)
	fmt.Fprintf(&b, "| reserved ids | %d |\n", s.ReservedIDs)
	return b.String()
}

func state(info domain.Info) string {
	if info.Killed {
		return "killed"
	}
	if info.State == "" {
		return "-"
	}
	return info.State
}

func age(info domain.Info, now time.Time) string {
	since := info.RegisteredAt
	if since.IsZero() {
		since = info.StartedAt
	}
	if since.IsZero() {
		return "-"
	}
	return now.Sub(since).Truncate(time.Second).String()
}

// cell keeps a value from breaking the table layout.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
