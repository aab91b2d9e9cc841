// Command spendwise-admin manages accounts directly against the configured
// store: creating users, promoting administrators and listing profiles.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"spendwise/internal/backend"
	"spendwise/internal/cli"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

func main() {
	a := &app{
		open:   openConfiguredStore,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	if err := a.run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	open   func(ctx context.Context, logger *log.Logger) (*backend.BackendResult, error)
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func openConfiguredStore(ctx context.Context, logger *log.Logger) (*backend.BackendResult, error) {
	if err := cli.LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := cli.LoadAndValidateConfig("", nil)
	if err != nil {
		return nil, err
	}
	return cli.InitStore(ctx, logger, cfg)
}

func (a *app) run(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spendwise-admin",
		Short:         "Manage spendwise accounts",
		Long:          "spendwise-admin creates users and changes roles in the store selected by the spendwise configuration.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(a.createUserCmd(), a.setRoleCmd(), a.listUsersCmd())
	return root
}

func (a *app) createUserCmd() *cobra.Command {
	var email, role, password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account",
		Long:  "Create an account. The password is prompted for when --password is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := core.ParseRole(role)
			if err != nil {
				return err
			}
			if password == "" {
				fmt.Fprint(a.stderr, "Password: ")
				password, err = readPassword(a.stdin)
				fmt.Fprintln(a.stderr)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			return a.withAccounts(cmd.Context(), func(accounts *services.AccountService) error {
				p, err := accounts.CreateUser(cmd.Context(), email, password, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Created %s %s (%s)\n", p.Role, p.Email, p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new account")
	cmd.Flags().StringVar(&role, "role", string(core.RoleUser), "role: user or admin")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) setRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := core.ParseRole(role)
			if err != nil {
				return err
			}
			return a.withAccounts(cmd.Context(), func(accounts *services.AccountService) error {
				p, err := accounts.SetRole(cmd.Context(), email, r)
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("no account registered with %s", email)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s is now %s\n", p.Email, p.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the account")
	cmd.Flags().StringVar(&role, "role", "", "role: user or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (a *app) listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAccounts(cmd.Context(), func(accounts *services.AccountService) error {
				users, err := accounts.ListUsers(cmd.Context(), services.Actor{Role: core.RoleAdmin})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format(time.DateOnly))
				}
				return tw.Flush()
			})
		},
	}
}

// withAccounts opens the store for the duration of fn.
func (a *app) withAccounts(ctx context.Context, fn func(*services.AccountService) error) error {
	logger := log.New(log.Config{
		Level:     slog.LevelWarn,
		Component: log.ComponentAdmin,
		Output:    a.stderr,
	})
	res, err := a.open(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Storage cleanup failed", log.FieldError, err.Error())
		}
	}()
	return fn(services.NewAccountService(res.Store, 0, logger))
}

// readPassword reads without echo from a terminal, or one line otherwise.
func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
