package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banao-ai/jarvisctl/pkg/chat"
)

// header, banner, input and hint rows around the viewport
const chromeRows = 4

func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	body := m.viewport.View()
	if m.snap.ModalError != "" {
		body = m.renderModal()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderBanner(),
		inputPromptStyle.Render("> ")+m.input.View(),
		m.renderHint(),
	)
}

func (m *Model) refreshViewport(scrollToBottom bool) {
	if m.showHelp {
		m.viewport.SetContent(m.renderHelp())
		return
	}
	if len(m.snap.Entries) == 0 {
		m.viewport.SetContent(m.renderWelcome())
		return
	}

	var b strings.Builder
	for _, e := range m.snap.Entries {
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	if scrollToBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderEntry(e chat.Entry) string {
	ts := mutedStyle.Render(e.Time.Format("15:04"))

	switch {
	case e.Pending:
		return m.spinner.View() + " " + mutedStyle.Render("Jarvis is thinking...") + "\n"

	case e.Sender == chat.SenderUser:
		return userLabelStyle.Render("You") + " " + ts + "\n" + e.Text + "\n"

	case e.Err:
		return errTextStyle.Render("✗ "+e.Text) + "\n"

	default:
		text := m.renderMarkdown(e.Text)
		out := assistantLabelStyle.Render("Jarvis") + " " + ts + "\n" + strings.TrimRight(text, "\n") + "\n"
		if len(e.Sources) > 0 {
			out += sourcesStyle.Render("Sources: "+strings.Join(e.Sources, ", ")) + "\n"
		}
		return out
	}
}

// renderMarkdown falls back to the raw text when glamour is unavailable
// or panics on malformed input.
func (m Model) renderMarkdown(text string) (out string) {
	out = text
	if m.renderer == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

func (m Model) renderHeader() string {
	dot := offlineStyle.Render("○ offline")
	if m.snap.BackendUp {
		dot = onlineStyle.Render("● online")
	}

	parts := []string{titleStyle.Render("Jarvis Console"), dot}
	if m.snap.Status != nil {
		parts = append(parts, mutedStyle.Render(m.snap.Status.OpenAIModel+" · "+m.snap.Status.PineconeIndex))
	}
	if m.snap.Metrics.Valid {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%.2fs · sim %.4f",
			m.snap.Metrics.LatencySeconds, m.snap.Metrics.TopSimilarity)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderBanner() string {
	if !m.snap.Banner.Visible {
		return ""
	}
	switch m.snap.Banner.Kind {
	case chat.BannerSuccess:
		return bannerOKStyle.Render(m.snap.Banner.Text)
	case chat.BannerError:
		return bannerErrStyle.Render(m.snap.Banner.Text)
	default:
		return bannerInfoStyle.Render(m.snap.Banner.Text)
	}
}

func (m Model) renderHint() string {
	if m.snap.ModalError != "" {
		return mutedStyle.Render("esc dismiss")
	}
	return mutedStyle.Render("enter send · ↑/↓ history · /help commands · ctrl+c quit")
}

func (m Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Ask Jarvis about your documents"))
	b.WriteString("\n\n")
	if len(m.snap.Questions) > 0 {
		b.WriteString(mutedStyle.Render("Try one of these (press the number):"))
		b.WriteString("\n")
		for i, q := range m.snap.Questions {
			b.WriteString(questionStyle.Render(fmt.Sprintf("  %d. %s", i+1, q)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Type a question, or /help for commands."))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"/clear", "clear the conversation and reload example questions"},
		{"/status", "check the backend status now"},
		{"/questions", "reload the example questions"},
		{"/upload PATH...", "upload local .txt/.pdf files for ingestion"},
		{"/ingest PATH... [clear]", "ingest server-side paths, 'clear' wipes the index first"},
		{"/help", "show this help"},
		{"/quit", "exit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Commands"))
	b.WriteString("\n\n")
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %-26s %s\n", questionStyle.Render(row[0]), row[1]))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Anything else is sent to Jarvis as a question."))
	return b.String()
}

func (m Model) renderModal() string {
	box := modalStyle.Render(
		errTextStyle.Render("Request failed") + "\n\n" +
			m.snap.ModalError + "\n\n" +
			mutedStyle.Render("press esc or enter to dismiss"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}
