package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func (c *cli) tokenCommand() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Access tokens",
	}

	var roles []string
	issue := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Mint an access token for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]auth.Role, 0, len(roles))
			for _, r := range roles {
				role, err := auth.ParseRole(strings.ToUpper(r))
				if err != nil {
					return err
				}
				parsed = append(parsed, role)
			}

			if c.cfg.SecretGenerated() {
				return errors.New("no secret key configured: set secret_key in the config file or LOSTFOUND_SECRET_KEY, otherwise the server will reject the token")
			}

			return c.withBackend(cmd, func(ctx context.Context, b Backend) error {
				t, err := b.IssueToken(args[0], parsed)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
	issue.Flags().StringSliceVarP(&roles, "role", "r", []string{auth.RoleUser.String()}, "role to grant (USER, ADMIN); repeatable")

	token.AddCommand(issue)
	return token
}

func (c *cli) userCommand() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "User accounts",
	}

	var mail string
	createAdmin := &cobra.Command{
		Use:   "create-admin <username>",
		Short: `Create an administrator; the username must start with "admin"`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !strings.HasPrefix(username, "admin") {
				return fmt.Errorf("%w: administrator usernames start with \"admin\"", common.ErrInvalidArgument)
			}

			out := cmd.OutOrStdout()
			pw, err := GetPassword(c.in, out, "Password: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			again, err := GetPassword(c.in, out, "Repeat password: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(again)

			if len(pw) == 0 {
				return errors.New("password is empty")
			}
			if !bytes.Equal(pw, again) {
				return errors.New("passwords do not match")
			}

			return c.withBackend(cmd, func(ctx context.Context, b Backend) error {
				u, err := b.RegisterUser(ctx, services.RegisterInput{UserName: username, Password: string(pw), Mail: mail})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created %s (%s) roles=%s\n", u.UserName, u.ID, strings.Join(u.Roles, ","))
				return nil
			})
		},
	}
	createAdmin.Flags().StringVar(&mail, "mail", "", "mail address (required)")
	_ = createAdmin.MarkFlagRequired("mail")

	user.AddCommand(createAdmin)
	return user
}

func (c *cli) assetsCommand() *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Stored photos",
	}

	var olderThan time.Duration
	gc := &cobra.Command{
		Use:   "gc",
		Short: "Delete photos no user, office or item refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grace := c.cfg.OrphanGracePeriod
			if cmd.Flags().Changed("older-than") {
				grace = olderThan
			}
			if grace < 0 {
				return fmt.Errorf("%w: negative grace period", common.ErrInvalidArgument)
			}

			return c.withBackend(cmd, func(ctx context.Context, b Backend) error {
				n, err := b.CollectOrphans(ctx, grace)
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orphaned assets older than %s\n", n, grace)
				return err
			})
		},
	}
	gc.Flags().DurationVar(&olderThan, "older-than", 0, "grace period; defaults to the configured orphan_grace_period")

	assetsCmd.AddCommand(gc)
	return assetsCmd
}
