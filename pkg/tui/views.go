package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/session"
)

func (m Model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	var body string
	switch m.store.Mode() {
	case session.ModeScanning:
		body = m.scanningView()
	case session.ModeCompleted:
		body = m.completedView()
	case session.ModeFailed:
		body = m.failedView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m Model) headerView() string {
	id := m.store.AnalysisID()
	if id == "" {
		id = "-"
	}
	name := ""
	if r := m.store.Result(); r != nil && r.RepoName != "" {
		name = r.RepoName + " · "
	}
	title := fmt.Sprintf("repopulse · %s%s · %s", name, id, m.store.Status())
	if m.store.Mode() == session.ModeScanning {
		title = m.spinner.View() + " " + title
	}
	return headerStyle.Width(m.width).Render(title)
}

func (m Model) footerView() string {
	if m.searching {
		return boldStyle.Render("/" + m.searchBuf + "█")
	}

	keys := "q quit · v view · s severity · j/k findings · n/p nodes · c chains · / search · esc clear"
	status := fmt.Sprintf("view: %s", m.store.ViewMode())
	if sel := m.store.Selection(); sel.SeverityFilter != "" {
		status += fmt.Sprintf(" · severity: %s", sel.SeverityFilter)
	}
	if p := m.builder.Pending(); p > 0 {
		status += fmt.Sprintf(" · %d edges pending", p)
	}
	return subtleStyle.Render(status + "\n" + keys)
}

// scanningView shows the pipeline agents, the incremental graph and the live
// advisory feed while the analysis is in flight.
func (m Model) scanningView() string {
	agents := paneStyle.Width(m.paneWidth()).Render(m.agentsView())
	graph := paneStyle.Width(m.paneWidth()).Render(
		titleStyle.Render("Repository Graph") + "\n" +
			m.panel.View(m.paneWidth()-4, graphHeight),
	)
	feed := paneStyle.Width(m.paneWidth()).Render(
		titleStyle.Render("Live Feed") + "\n" + m.feed.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, agents, graph, feed)
}

func (m Model) agentsView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Pipeline") + "\n")

	for _, a := range m.store.AgentStatuses() {
		marker := stateMarker(a.State)
		bar := m.bar.ViewAs(a.Progress)

		line := fmt.Sprintf("%s %-24s %s %3.0f%%", marker, a.Name, bar, a.Progress*100)
		if a.FindingsCount > 0 {
			line += fmt.Sprintf("  %d findings", a.FindingsCount)
		}
		if a.Message != "" {
			line += "  " + subtleStyle.Render(a.Message)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func stateMarker(state session.AgentState) string {
	switch state {
	case session.AgentComplete:
		return okStyle.Render("✓")
	case session.AgentRunning:
		return infoStyle.Render("▸")
	case session.AgentError:
		return errorStyle.Render("✗")
	default:
		return subtleStyle.Render("·")
	}
}

// updateFeed rebuilds the viewport content from the bounded live feeds,
// newest at the bottom.
func (m *Model) updateFeed() {
	var sb strings.Builder
	for _, f := range m.store.LiveFindings() {
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			severityStyle(string(f.Severity)).Render(strings.ToUpper(string(f.Severity))),
			f.Title,
			subtleStyle.Render("["+f.Agent+"]"),
		))
	}
	for _, insight := range m.store.Insights() {
		sb.WriteString(infoStyle.Render("✦ ") + insight + "\n")
	}
	m.feed.SetContent(sb.String())
	m.feed.GotoBottom()
}

// completedView shows the authoritative result: score, findings browser,
// chains and fixes, with the graph still explorable.
func (m Model) completedView() string {
	score := paneStyle.Width(m.paneWidth()).Render(m.scoreView())
	findings := paneStyle.Width(m.paneWidth()).Render(m.findingsView())
	chains := paneStyle.Width(m.paneWidth()).Render(m.chainsView())
	graph := paneStyle.Width(m.paneWidth()).Render(
		titleStyle.Render("Repository Graph") + "\n" +
			m.panel.View(m.paneWidth()-4, graphHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, score, findings, chains, graph)
}

func (m Model) scoreView() string {
	r := m.store.Result()
	if r == nil || r.HealthScore == nil {
		return subtleStyle.Render("waiting for results...")
	}

	hs := r.HealthScore
	gradeStyle, ok := gradeStyles[hs.LetterGrade]
	if !ok {
		gradeStyle = boldStyle
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  %s %d/100  confidence %.0f%%\n",
		titleStyle.Render("Health"),
		gradeStyle.Render(hs.LetterGrade),
		hs.Overall,
		hs.Confidence*100,
	))
	cats := make([]string, 0, len(hs.Breakdown))
	for cat := range hs.Breakdown {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		cs := hs.Breakdown[cat]
		sb.WriteString(fmt.Sprintf("  %-16s %3d/%d  %s\n", cat, cs.Score, cs.Max, subtleStyle.Render(cs.Status)))
	}

	f := r.Findings
	sb.WriteString(fmt.Sprintf("\n%s critical  %s warning  %s info  ·  %d total  ·  %ds",
		criticalStyle.Render(fmt.Sprintf("%d", f.Critical)),
		warningStyle.Render(fmt.Sprintf("%d", f.Warning)),
		infoStyle.Render(fmt.Sprintf("%d", f.Info)),
		f.Total,
		r.Timestamps.Duration,
	))

	if _, sum := m.store.Fixes(); sum.TotalFixes > 0 {
		sb.WriteString(fmt.Sprintf("\nfixes: %d available (%s)", sum.TotalFixes, sum.EstimatedTotalEffort))
		if sum.KeystoneFixes > 0 {
			sb.WriteString(fmt.Sprintf("  ·  %d keystone resolving %d chains",
				sum.KeystoneFixes, sum.ChainsEliminatedByKeystones))
		}
	}
	return sb.String()
}

func (m Model) findingsView() string {
	findings := m.store.Findings()

	title := "Findings"
	if sel := m.store.Selection(); sel.SeverityFilter != "" {
		title += fmt.Sprintf(" (%s)", sel.SeverityFilter)
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title) + "\n")

	if len(findings) == 0 {
		sb.WriteString(subtleStyle.Render("no findings match the current filter"))
		return sb.String()
	}

	// Window the list around the cursor.
	const window = 8
	start := 0
	if m.findingCursor >= window {
		start = m.findingCursor - window + 1
	}
	end := start + window
	if end > len(findings) {
		end = len(findings)
	}

	for i := start; i < end; i++ {
		f := findings[i]
		cursor := "  "
		if i == m.findingCursor {
			cursor = "▶ "
		}
		loc := ""
		if f.Location.PrimaryFile != "" {
			loc = fmt.Sprintf(" %s:%d", f.Location.PrimaryFile, f.Location.StartLine)
		}
		line := fmt.Sprintf("%s%s %s%s %s",
			cursor,
			severityStyle(string(f.Severity)).Render(sevTag(f.Severity)),
			f.Title,
			subtleStyle.Render(loc),
			subtleStyle.Render("["+f.Agent+"]"),
		)
		if i == m.findingCursor {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("%d/%d", m.findingCursor+1, len(findings))))
	return sb.String()
}

func (m Model) chainsView() string {
	chains := m.store.Chains()
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Vulnerability Chains") + "\n")

	if len(chains) == 0 {
		sb.WriteString(subtleStyle.Render("no chains detected"))
		return sb.String()
	}

	highlighted := m.store.Selection().ChainID
	for i, ch := range chains {
		cursor := "  "
		if i == m.chainCursor {
			cursor = "▶ "
		}
		line := fmt.Sprintf("%s%s %s (%d steps)",
			cursor,
			severityStyle(string(ch.Severity)).Render(strings.ToUpper(string(ch.Severity))),
			ch.Description,
			len(ch.Steps),
		)
		if ch.ID == highlighted {
			line = emphasizedStyle.Render(line)
			for i, step := range ch.Steps {
				line += "\n      " + subtleStyle.Render(fmt.Sprintf("%d. [%s] %s", i+1, step.Type, step.Description))
			}
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// failedView distinguishes the terminal failure causes and suggests recovery.
func (m Model) failedView() string {
	msg := m.store.ErrorMessage()
	if msg == "" {
		msg = "Analysis failed"
	}

	hint := "Press q to quit, then retry with `repopulse watch <analysis-id>`."
	switch {
	case strings.Contains(msg, "not found"):
		hint = "Check the repository URL; private repositories are not analyzable."
	case strings.Contains(msg, "Rate limited"):
		hint = "Wait a moment and submit again."
	case strings.Contains(msg, "Lost connection"):
		hint = "The analysis may still be running server-side; re-attach with `repopulse watch`."
	}

	return paneStyle.Width(m.paneWidth()).Render(
		errorStyle.Render("✗ "+msg) + "\n\n" + subtleStyle.Render(hint),
	)
}

func sevTag(sev api.Severity) string {
	tag := strings.ToUpper(string(sev))
	if len(tag) > 4 {
		tag = tag[:4]
	}
	return tag
}

func (m Model) paneWidth() int {
	if m.width <= 4 {
		return 96
	}
	return m.width - 2
}
