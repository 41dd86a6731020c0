// Package statusui implements the host-side live status dashboard:
// connections, the current focus owner, and per-peer event counts,
// refreshed on a timer. The teacher's
// own dashboard (console_layout.go/ansi_console.go/terminal_windows.go)
// drew a pinned header over a scrolling log region with raw ANSI escapes
// and golang.org/x/term for terminal size; this rewrite keeps that same
// "pinned summary, scrolling detail" shape but renders it with
// github.com/gdamore/tcell/v2 + github.com/rivo/tview, which go.mod
// already carries and which several pack repos use for exactly this kind
// of live terminal dashboard rather than hand-rolled escape sequences.
package statusui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/multishiva/multishiva/internal/connstats"
	"github.com/multishiva/multishiva/internal/focus"
)

// PeerStatus is one row of the connections table.
type PeerStatus struct {
	Name  string
	State string
	Addr  string
}

// Snapshot is everything the dashboard needs to redraw one frame.
type Snapshot struct {
	SelfName string
	Focus    focus.State
	Peers    []PeerStatus
	Stats    *connstats.Tracker
	Uptime   time.Duration
}

// Dashboard is a tview application rendering a Snapshot, refreshed by the
// caller calling Update.
type Dashboard struct {
	app    *tview.Application
	header *tview.TextView
	table  *tview.Table
}

// New builds a Dashboard. Call Run to block until the user quits (q or
// Ctrl-C), and call Update from another goroutine as new snapshots
// arrive.
func New() *Dashboard {
	header := tview.NewTextView().SetDynamicColors(true)
	header.SetBorder(true).SetTitle(" multishiva ")

	table := tview.NewTable().SetBorders(false)
	table.SetBorder(true).SetTitle(" connections ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 5, 0, false).
		AddItem(table, 0, 1, false)

	app := tview.NewApplication().SetRoot(flex, true)
	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' || ev.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		return ev
	})

	return &Dashboard{app: app, header: header, table: table}
}

// Run blocks, driving the terminal UI, until the user quits.
func (d *Dashboard) Run() error {
	return d.app.Run()
}

// Stop requests the UI loop exit.
func (d *Dashboard) Stop() {
	d.app.Stop()
}

// Update redraws the dashboard from snap. Safe to call from any
// goroutine; tview serializes via QueueUpdateDraw.
func (d *Dashboard) Update(snap Snapshot) {
	d.app.QueueUpdateDraw(func() {
		d.header.SetText(headerText(snap))
		fillTable(d.table, snap)
	})
}

func headerText(snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "self: [yellow]%s[-]   uptime: %s\n", snap.SelfName, snap.Uptime.Round(time.Second))
	switch snap.Focus.Phase {
	case focus.Local:
		fmt.Fprintf(&b, "focus: [green]local[-]\n")
	case focus.Pending:
		fmt.Fprintf(&b, "focus: [orange]pending -> %s[-]\n", snap.Focus.Peer)
	case focus.Remote:
		fmt.Fprintf(&b, "focus: [red]remote -> %s[-] (since %s)\n", snap.Focus.Peer, snap.Focus.Since.Format(time.Kitchen))
	}
	return b.String()
}

func fillTable(table *tview.Table, snap Snapshot) {
	table.Clear()
	headers := []string{"peer", "state", "address", "events", "focus grants"}
	for col, h := range headers {
		table.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tcell.ColorYellow))
	}

	var eventCounts map[string]map[string]uint64
	var focusCounts map[string]uint64
	if snap.Stats != nil {
		eventCounts = snap.Stats.EventCounts()
		focusCounts = snap.Stats.FocusGrantCounts()
	}

	peers := append([]PeerStatus(nil), snap.Peers...)
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })

	for row, p := range peers {
		var total uint64
		for _, c := range eventCounts[p.Name] {
			total += c
		}
		table.SetCell(row+1, 0, tview.NewTableCell(p.Name))
		table.SetCell(row+1, 1, tview.NewTableCell(p.State))
		table.SetCell(row+1, 2, tview.NewTableCell(p.Addr))
		table.SetCell(row+1, 3, tview.NewTableCell(humanize.Comma(int64(total))))
		table.SetCell(row+1, 4, tview.NewTableCell(humanize.Comma(int64(focusCounts[p.Name]))))
	}
}
