// Package cli implements the cognichat command line.
package cli

import (
	"context"
	"fmt"

	"cognichat/internal/app"
	"cognichat/internal/config"
	"cognichat/internal/logger"
	"cognichat/internal/session"
	"cognichat/models"

	"github.com/spf13/cobra"
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// Services are the in-process components a command needs.
type Services struct {
	Asker    Asker
	Sessions *session.Manager
	Close    func()
}

// newServices is replaced in tests.
var newServices = func(ctx context.Context) (*Services, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Services{Asker: a.Pipeline, Sessions: a.Sessions, Close: a.Close}, nil
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "cognichat",
	Short: "Ask questions about your documentation",
	Long: `cognichat answers questions using only the text of the configured
documentation sources. Configuration is read from the environment or a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.InitWithWriter(cmd.ErrOrStderr(), true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write debug logs to stderr")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := newServices(ctx)
	if err != nil {
		return err
	}
	if svc.Close != nil {
		defer svc.Close()
	}
	return fn(ctx, svc)
}
