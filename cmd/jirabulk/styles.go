package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"jirabulk/models"
)

// Styles for output
var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	})
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	boldStyle = lipgloss.NewStyle().Bold(true)
	boxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const (
	iconPass = "✓"
	iconFail = "✗"
	iconOff  = "·"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusIcon(status models.OutcomeStatus) string {
	if status == models.StatusSuccess {
		return passStyle.Render(iconPass)
	}
	return failStyle.Render(iconFail)
}

func selectedIcon(selected bool) string {
	if selected {
		return accentStyle.Render("[x]")
	}
	return mutedStyle.Render("[ ]")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// renderCreationRecord は作成結果のサマリーを表示します
func renderCreationRecord(w io.Writer, rec *models.CreationRecord) {
	title := fmt.Sprintf("作成結果 %s", mutedStyle.Render(rec.ID))
	if rec.DryRun {
		title += " " + warnStyle.Render("(dry-run)")
	}
	counts := fmt.Sprintf("Epic %d / Task %d   %s %d   %s %d",
		rec.EpicCount, rec.TaskCount,
		passStyle.Render("成功"), rec.SuccessCount,
		failStyle.Render("失敗"), rec.FailCount)
	fmt.Fprintln(w, boxStyle.Render(boldStyle.Render(title)+"\n"+counts))

	for _, t := range rec.Tickets {
		line := fmt.Sprintf("%s %-5s %s", statusIcon(t.Status), t.Type, truncate(t.Summary, 60))
		if t.JiraKey != nil {
			line += "  " + accentStyle.Render(*t.JiraKey)
			if link := rec.BrowseURL(*t.JiraKey); link != "" && !rec.DryRun {
				line += " " + mutedStyle.Render(link)
			}
		}
		if t.ErrorMessage != nil {
			line += "  " + failStyle.Render(*t.ErrorMessage)
		}
		fmt.Fprintln(w, line)
	}
}

// renderEditRecord は更新結果のサマリーを表示します
func renderEditRecord(w io.Writer, rec *models.EditRecord) {
	title := fmt.Sprintf("更新結果 %s", mutedStyle.Render(rec.ID))
	counts := fmt.Sprintf("%s %d   %s %d",
		passStyle.Render("成功"), rec.SuccessCount,
		failStyle.Render("失敗"), rec.FailCount)
	fmt.Fprintln(w, boxStyle.Render(boldStyle.Render(title)+"\n"+counts))

	for _, t := range rec.Tickets {
		line := fmt.Sprintf("%s %-10s %s", statusIcon(t.Status), t.JiraKey, truncate(t.Summary, 60))
		if t.ErrorMessage != nil {
			line += "  " + failStyle.Render(*t.ErrorMessage)
		}
		fmt.Fprintln(w, line)
	}
}

func renderTicketRows(w io.Writer, rows []models.TicketRow) {
	for i, r := range rows {
		parent := r.ParentKey
		if parent == "" && r.ParentRowID != "" {
			parent = "row:" + shortID(r.ParentRowID)
		}
		fmt.Fprintf(w, "%3d %s %s %-4s %-50s %s %s\n",
			i, selectedIcon(r.Selected), mutedStyle.Render(shortID(r.ID)),
			r.Type, truncate(r.Summary, 50),
			mutedStyle.Render(strings.TrimSpace(r.StartDate+" "+r.DueDate)),
			accentStyle.Render(parent))
	}
}

func renderEditRows(w io.Writer, rows []models.EditRow) {
	for _, r := range rows {
		mark := iconOff
		if r.Changed() {
			mark = warnStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s %s %-10s %-12s %s\n",
			selectedIcon(r.Selected), mark, mutedStyle.Render(shortID(r.ID)),
			accentStyle.Render(r.Key), truncate(r.Status, 12), truncate(r.Summary, 60))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
