package cli

import (
	"context"
	"fmt"

	"cognichat/internal/session"
	"cognichat/internal/tui"
	"cognichat/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Opens a terminal chat backed by one session.

Controls:
  Enter    - Send
  Ctrl+S   - Show or hide the sources of the last answer
  Ctrl+L   - Clear the conversation
  PgUp/Dn  - Scroll
  Esc      - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// sessionConversation binds the terminal to one session.
type sessionConversation struct {
	manager *session.Manager
	id      string
}

func (s *sessionConversation) Ask(ctx context.Context, question string) (*models.Answer, error) {
	return s.manager.Ask(ctx, s.id, question)
}

func (s *sessionConversation) Clear(ctx context.Context) error {
	return s.manager.Clear(ctx, s.id)
}

func runChat(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(ctx context.Context, svc *Services) error {
		s := svc.Sessions.Create(ctx)
		defer func() {
			_ = svc.Sessions.End(context.Background(), s.ID)
		}()

		conv := &sessionConversation{manager: svc.Sessions, id: s.ID}
		p := tea.NewProgram(tui.New(ctx, conv), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	})
}
