package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ag-tej/shiksha-setu/internal/domain"
	apperrors "github.com/ag-tej/shiksha-setu/internal/errors"
)

func newChatCmd(app *App) *cobra.Command {
	var sessionID string
	var newSession bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant a question",
		Long: `Send one message when given as an argument, or start an interactive
conversation when run without arguments. Messages go to the selected session;
without --session the most recent one is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := app.requireIdentity(ctx); err != nil {
				return err
			}
			if err := app.pickSession(ctx, sessionID, newSession); err != nil {
				return err
			}
			if len(args) == 1 {
				return app.ask(cmd, args[0])
			}
			return app.converse(cmd)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID (default: most recent)")
	cmd.Flags().BoolVar(&newSession, "new", false, "start a fresh session")
	return cmd
}

func (a *App) pickSession(ctx context.Context, id string, fresh bool) error {
	if fresh {
		_, err := a.Store.Create(ctx)
		return err
	}
	err := a.activeSession(ctx, id)
	if err != nil && id == "" && apperrors.IsType(err, apperrors.TypePrecondition) {
		// No sessions yet, start the first one.
		_, err = a.Store.Create(ctx)
	}
	return err
}

// ask sends one message and prints the assistant's reply.
func (a *App) ask(cmd *cobra.Command, text string) error {
	session, err := a.Store.SendMessage(cmd.Context(), text)
	if err != nil {
		return err
	}
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == domain.RoleAssistant {
			fmt.Fprintln(cmd.OutOrStdout(), renderMessage(session.Messages[i]))
			break
		}
	}
	return nil
}

// converse runs a line-oriented conversation loop until EOF or /quit.
func (a *App) converse(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	session, _ := a.Store.Active()
	fmt.Fprint(out, renderTranscript(session))
	fmt.Fprintln(out, idStyle.Render("Type a question, or /quit to leave."))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for {
		fmt.Fprint(out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(out, errorStyle.Render("Unknown command "+line))
			continue
		}

		session, err := a.Store.SendMessage(cmd.Context(), line)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(apperrors.UserMessage(err)))
			continue
		}
		if n := len(session.Messages); n > 0 && session.Messages[n-1].Role == domain.RoleAssistant {
			fmt.Fprintln(out, renderMessage(session.Messages[n-1]))
		}
	}
}
