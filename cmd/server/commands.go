package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/booklend/internal/server"
	"github.com/dmitrijs2005/booklend/internal/server/config"
	"github.com/dmitrijs2005/booklend/internal/server/seed"
)

// Seams for tests.
var (
	loadConfig     = config.LoadConfig
	isTerminal     = term.IsTerminal
	readPassword   = term.ReadPassword
	readFile       = os.ReadFile
	newApplication = func(ctx context.Context, cfg *config.Config) (application, error) {
		return server.NewApp(ctx, cfg)
	}
)

type application interface {
	Run(ctx context.Context) error
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, password string) (*seed.Result, error)
	UploadCover(ctx context.Context, adminName string, bookID int64, image []byte) error
	Close() error
}

// Server settings (-a, -d, -s, ...) are read from os.Args by the config
// package, so cobra is told to let them through.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "booklend",
		Short:         "Library lending server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newCoverCmd())
	return root
}

func passThroughFlags(cmd *cobra.Command) *cobra.Command {
	cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	cmd.Args = cobra.ArbitraryArgs
	return cmd
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, app application) error) error {
	ctx := cmd.Context()
	app, err := newApplication(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func newServeCmd() *cobra.Command {
	return passThroughFlags(&cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app application) error {
				return app.Run(ctx)
			})
		},
	})
}

func newMigrateCmd() *cobra.Command {
	return passThroughFlags(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app application) error {
				if err := app.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	})
}

func newSeedCmd() *cobra.Command {
	var password string

	cmd := passThroughFlags(&cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and starter books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("password") {
				pw, err := promptPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = pw
			}

			return withApp(cmd, func(ctx context.Context, app application) error {
				res, err := app.Seed(ctx, password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if res.AdminCreated {
					fmt.Fprintf(out, "Admin account %q created.\n", seed.AdminUserName)
				} else {
					fmt.Fprintf(out, "Admin account %q already exists.\n", seed.AdminUserName)
				}
				fmt.Fprintf(out, "Starter books added: %d\n", res.BooksAdded)
				return nil
			})
		},
	})
	cmd.Flags().StringVar(&password, "password", "", "admin password (prompted for on a terminal, default "+seed.DefaultPassword+")")
	return cmd
}

func newCoverCmd() *cobra.Command {
	var admin string

	cmd := passThroughFlags(&cobra.Command{
		Use:   "cover <book-id> <image-file>",
		Short: "Upload a cover image for a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <book-id> <image-file>, got %d arguments", len(args))
			}
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || bookID <= 0 {
				return fmt.Errorf("invalid book id %q", args[0])
			}
			image, err := readFile(args[1])
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, app application) error {
				if err := app.UploadCover(ctx, admin, bookID, image); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cover uploaded for book %d.\n", bookID)
				return nil
			})
		},
	})
	cmd.Flags().StringVar(&admin, "admin", seed.AdminUserName, "administrator account to act as")
	return cmd
}

// promptPassword asks for the admin password on an interactive terminal.
// Empty input, or no terminal at all, selects the default password.
func promptPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", nil
	}

	fmt.Fprintf(w, "Admin password (empty for %s): ", seed.DefaultPassword)
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(pw)), nil
}
