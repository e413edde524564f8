package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cognichat/models"

	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Long: `Builds the index if needed, answers the question from the retrieved
chunks and prints the answer followed by its sources.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return models.ErrEmptyQuestion
	}

	return withServices(cmd, func(ctx context.Context, svc *Services) error {
		answer, err := svc.Asker.Ask(ctx, question)
		if err != nil {
			if models.IsRecoverable(err) {
				return fmt.Errorf("the model could not answer right now, please try again: %w", err)
			}
			return fmt.Errorf("ask failed: %w", err)
		}

		if askJSON {
			data, err := json.MarshalIndent(models.AskResponse{
				Answer:         answer.Text,
				Sources:        answer.Sources(),
				ResponseTimeMs: answer.Duration.Milliseconds(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal answer: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		cmd.Println(answer.Text)
		if sources := answer.Sources(); len(sources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for i, src := range sources {
				cmd.Printf("  [%d] %s\n", i+1, src)
			}
		}
		cmd.Printf("\n(%.2fs)\n", answer.Duration.Seconds())
		return nil
	})
}
