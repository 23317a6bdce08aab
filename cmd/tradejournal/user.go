// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TradeJournal Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tradejournal/tradejournal/internal/auth"
	"github.com/tradejournal/tradejournal/internal/config"
	"github.com/tradejournal/tradejournal/pkg/errutil"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// userBackendOpener is a test seam for openBackend.
var userBackendOpener BackendOpener = openBackend

// NewUserCmd creates the user command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Provision and administer user accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserResetCmd())
	cmd.AddCommand(newUserDeactivateCmd())
	return cmd
}

type userAddOptions struct {
	employeeID     string
	fullName       string
	email          string
	role           string
	promptPassword bool
}

func newUserAddCmd() *cobra.Command {
	opts := &userAddOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an active user",
		Long: `Create an active user. Unless --prompt-password is given, the stored
password is the default derived from the email and employee ID: the local
part of the email followed by the employee ID. An existing employee ID or
email is reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *config.Config, b *Backend) error {
				return runUserAdd(ctx, cmd, cfg, b, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.employeeID, "employee-id", "", "employee ID (required)")
	cmd.Flags().StringVar(&opts.fullName, "name", "", "full name")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleUser), "role")
	cmd.Flags().BoolVar(&opts.promptPassword, "prompt-password", false, "read the initial password from the terminal")
	_ = cmd.MarkFlagRequired("employee-id") //nolint:errcheck // flag is defined above
	_ = cmd.MarkFlagRequired("email")       //nolint:errcheck // flag is defined above
	return cmd
}

func runUserAdd(ctx context.Context, cmd *cobra.Command, cfg *config.Config, b *Backend, opts *userAddOptions) error {
	hasher := auth.NewHasher(cfg.BootstrapPassword)

	digest := hasher.DerivePassword(strings.TrimSpace(opts.email), strings.TrimSpace(opts.employeeID))
	if opts.promptPassword {
		password, err := promptNewPassword(cmd, cfg.MinPasswordLength)
		if err != nil {
			return err
		}
		if hasher.IsBootstrap(password) {
			return oops.Code("PASSWORD_INVALID").Errorf("initial password cannot be the temporary password")
		}
		digest = hasher.Hash(password)
	}

	user, err := auth.NewUser(opts.employeeID, opts.fullName, opts.email, auth.Role(opts.role), digest)
	if err != nil {
		return err
	}
	if err := b.Creds.Create(ctx, user); err != nil {
		if errutil.Code(err) == auth.CodeUserExists {
			cmd.Printf("Skipped %s: employee ID or email already exists\n", user.EmployeeID)
			return nil
		}
		return oops.With("operation", "create user").Wrap(err)
	}
	cmd.Printf("Created user %s (%s)\n", user.EmployeeID, user.Email)
	return nil
}

func promptNewPassword(cmd *cobra.Command, minLen int) (string, error) {
	fd := int(os.Stdin.Fd())
	cmd.Print("Enter password: ")
	first, err := readPassword(fd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	cmd.Print("Confirm password: ")
	second, err := readPassword(fd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}

	if string(first) != string(second) {
		return "", oops.Code("PASSWORD_INVALID").Errorf("passwords do not match")
	}
	if len([]rune(string(first))) < minLen {
		return "", oops.Code("PASSWORD_INVALID").With("min", minLen).Errorf("password must be at least %d characters", minLen)
	}
	return string(first), nil
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *config.Config, b *Backend) error {
				users, err := b.Creds.List(ctx)
				if err != nil {
					return oops.With("operation", "list users").Wrap(err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EMPLOYEE ID\tNAME\tEMAIL\tROLE\tSTATUS\tFLAGS")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						u.EmployeeID, u.FullName, u.Email, u.Role, statusLabel(u), flagLabel(u))
				}
				if err := tw.Flush(); err != nil {
					return oops.Code("OUTPUT_FAILED").Wrap(err)
				}
				return nil
			})
		},
	}
}

func statusLabel(u *auth.User) string {
	if u.IsActive() {
		return "active"
	}
	return "inactive"
}

func flagLabel(u *auth.User) string {
	var flags []string
	if u.RequirePasswordChange {
		flags = append(flags, "change-required")
	}
	if u.IsTemporaryPassword {
		flags = append(flags, "temporary")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func newUserResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password EMAIL",
		Short: "Reset a password to the temporary password and notify the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, cfg *config.Config, b *Backend) error {
				logger, err := setupLogging(cfg)
				if err != nil {
					return err
				}
				svc, err := auth.NewAuthService(b.Creds, b.Tokens, auth.NewHasher(cfg.BootstrapPassword),
					auth.WithNotifier(buildNotifier(cfg, logger)),
					auth.WithLogger(logger),
				)
				if err != nil {
					return err
				}
				res, err := svc.ResetPassword(ctx, args[0])
				if err != nil {
					return err
				}
				switch {
				case !res.Changed:
					cmd.Println("No active account uses that email; nothing changed")
				case res.NotifyErr != nil:
					cmd.PrintErrln("warning: password reset but notification failed:", res.NotifyErr)
				default:
					cmd.Println("Password reset; the owner has been notified")
				}
				return nil
			})
		},
	}
}

func newUserDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate EMPLOYEE_ID",
		Short: "Deactivate an account and revoke its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, _ *config.Config, b *Backend) error {
				employeeID := strings.TrimSpace(args[0])
				if err := b.Creds.SetStatus(ctx, employeeID, auth.StatusInactive); err != nil {
					return oops.With("operation", "deactivate user").Wrap(err)
				}
				revoked, err := b.Tokens.RevokeByUser(ctx, employeeID)
				if err != nil {
					return oops.With("operation", "revoke session").Wrap(err)
				}
				cmd.Printf("Deactivated %s", employeeID)
				if revoked {
					cmd.Print(" and revoked its session")
				}
				cmd.Println()
				return nil
			})
		},
	}
}

func withBackend(cmd *cobra.Command, fn func(context.Context, *config.Config, *Backend) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendMemory {
		cmd.PrintErrln("warning: the memory backend does not persist changes")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := userBackendOpener(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, cfg, b)
}
