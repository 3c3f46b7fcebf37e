package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bcnelson/facepoke-broker/internal/config"
	"github.com/bcnelson/facepoke-broker/internal/logging"
	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/storage/backend"
)

// NewRootCmd builds the keyctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keyctl",
		Short: "keyctl manages Face Poke activation keys",
		Long: `Generate, list and revoke activation keys directly against the key store.
The store is selected with the same DB_DRIVER and DB_DSN variables as the server.`,
		SilenceUsage: true,
	}
	root.AddCommand(newGenerateCmd(), newListCmd(), newRevokeCmd())
	return root
}

func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

// keyEnv is what a subcommand needs to talk to the key store.
type keyEnv struct {
	keys        *service.KeyService
	botUsername string
	close       func() error
}

// openKeys loads configuration and opens the key store. Logs go to stderr so
// command output stays parseable.
func openKeys(stderr io.Writer) (*keyEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	store, err := backend.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening key store: %w", err)
	}
	return &keyEnv{
		keys:        service.NewKeyService(store, logger),
		botUsername: cfg.Telegram.BotUsername,
		close:       store.Close,
	}, nil
}
