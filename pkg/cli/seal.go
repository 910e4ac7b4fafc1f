package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-discovery/pkg/crypto"
)

// NewSealSecretCommand creates the seal-secret command.
func NewSealSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seal-secret",
		Short: "Seal a datasource password with CREDENTIALS_KEY",
		Long: `Read a secret from stdin and print it sealed with CREDENTIALS_KEY.
The output can be used as DATASOURCE_PASSWORD; it is opened when the
configuration is loaded. Trailing newlines are stripped from the input.`,
		Example: `  export CREDENTIALS_KEY=$(openssl rand -base64 32)
  printf '%s' "$DB_PASSWORD" | ekaya-discovery seal-secret`,
		Args: cobra.NoArgs,
		RunE: runSealSecret,
	}
}

func runSealSecret(cmd *cobra.Command, _ []string) error {
	app := appFrom(cmd.Context())

	box, err := crypto.NewBox(app.Config.CredentialsKey)
	if err != nil {
		return fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(string(raw), "\r\n")
	if secret == "" {
		return errors.New("no secret given on stdin")
	}

	sealed, err := box.Seal(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return err
}
