package cli

import (
	"errors"
	"os"
	"time"

	"cognichat/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	tokenSubject   string
	tokenTTL       time.Duration
	tokenSecret    string
	tokenNewSecret bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for the index endpoints",
	Long: `Signs an admin JWT with ADMIN_SECRET (or --secret). With --new-secret it
prints a fresh random secret instead.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "subject recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "signing secret (defaults to ADMIN_SECRET)")
	tokenCmd.Flags().BoolVar(&tokenNewSecret, "new-secret", false, "generate a new ADMIN_SECRET and exit")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenNewSecret {
		secret, err := utils.GenerateAdminSecret()
		if err != nil {
			return err
		}
		cmd.Println(secret)
		return nil
	}

	secret := tokenSecret
	if secret == "" {
		_ = godotenv.Load()
		secret = os.Getenv("ADMIN_SECRET")
	}
	if secret == "" {
		return errors.New("no signing secret: set ADMIN_SECRET or pass --secret")
	}

	token, err := utils.GenerateAdminToken(tokenSubject, secret, tokenTTL)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
