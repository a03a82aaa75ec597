package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/ag-tej/shiksha-setu/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Render("you")
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Render("assistant")
	systemLabel    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243")).Render("system")
	failedBadge    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("[failed]")
	pendingBadge   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Render("[sending]")
)

func renderSessionList(sessions []*domain.Session) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, session := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			idStyle.Render(session.ID),
			titleStyle.Render(session.Title),
			fmt.Sprintf("%d messages", len(session.Messages)),
			dateStyle.Render(session.UpdatedAt.Local().Format("2006-01-02 15:04")),
		)
	}
	w.Flush()
	return sb.String()
}

func renderSessionLine(session *domain.Session) string {
	return fmt.Sprintf("%s %s", titleStyle.Render(session.Title), idStyle.Render("("+session.ID+")"))
}

func renderTranscript(session *domain.Session) string {
	var sb strings.Builder
	sb.WriteString(renderSessionLine(session))
	sb.WriteString("\n\n")
	for _, message := range session.Messages {
		sb.WriteString(renderMessage(message))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderMessage(message domain.Message) string {
	label := systemLabel
	switch message.Role {
	case domain.RoleUser:
		label = userLabel
	case domain.RoleAssistant:
		label = assistantLabel
	}

	badge := ""
	if message.Failed {
		badge = " " + failedBadge
	} else if message.Pending {
		badge = " " + pendingBadge
	}
	return fmt.Sprintf("%s%s  %s", label, badge, message.Content)
}
