// Package admin implements lostfoundctl, the operator CLI: database
// migrations, token minting, admin accounts and orphan collection.
package admin

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/spf13/cobra"
)

// Backend is what the commands need from a running deployment.
type Backend interface {
	Migrate(ctx context.Context) error
	IssueToken(subject string, roles []auth.Role) (string, error)
	RegisterUser(ctx context.Context, in services.RegisterInput) (*models.User, error)
	CollectOrphans(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// Opener connects a Backend for the loaded configuration.
type Opener func(ctx context.Context, cfg *config.Config) (Backend, error)

type cli struct {
	open       Opener
	in         *bufio.Reader
	configPath string
	dsn        string
	cfg        *config.Config
}

// NewRootCommand builds the command tree. in is read for passwords when
// stdin is not a terminal.
func NewRootCommand(open Opener, in io.Reader) *cobra.Command {
	c := &cli{open: open, in: bufio.NewReader(in)}

	root := &cobra.Command{
		Use:           "lostfoundctl",
		Short:         "Administer a lostfound deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigFile(c.configPath)
			if err != nil {
				return err
			}
			if c.dsn != "" {
				cfg.DatabaseDSN = c.dsn
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (json, yaml or toml)")
	root.PersistentFlags().StringVarP(&c.dsn, "dsn", "d", "", "database DSN, overrides the config")

	root.AddCommand(
		c.migrateCommand(),
		c.tokenCommand(),
		c.userCommand(),
		c.assetsCommand(),
	)

	return root
}

// withBackend opens the backend, runs fn and closes it again.
func (c *cli) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := c.open(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, b)
}
