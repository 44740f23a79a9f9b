package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/memberdata"
	"github.com/cafevdb/cafevdbmembers/projectgroups"
	"github.com/cafevdb/cafevdbmembers/registration"
	"github.com/cafevdb/cafevdbmembers/server"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the member portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.db.Ping(ctx); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}

			srv, err := server.New(server.Config{
				Authenticator:     a.authn,
				Tokens:            a.tokens,
				Database:          a.db,
				Settings:          a.settings,
				Members:           memberdata.NewService(a.logger.With("component", "memberdata")),
				Events:            a.events,
				Registrations:     registration.NewService(a.db, a.logger.With("component", "registration")),
				ProjectGroups:     a.sync,
				AdminGroup:        a.cfg.AdminGroup,
				RegistrationRate:  rate.Limit(a.cfg.RegistrationRate),
				RegistrationBurst: a.cfg.RegistrationBurst,
				Logger:            a.logger.With("component", "server"),
			})
			if err != nil {
				return err
			}

			httpServer := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      2 * a.cfg.RequestTimeout,
			}
			upkeep, stop := context.WithCancel(ctx)
			defer stop()
			srv.Start(upkeep)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", "addr", a.cfg.ListenAddr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "groupfolders:sync [group]",
		Short: "Reconcile the group folders of one or all project groups",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			report := func(result projectgroups.SyncResult, err error) {
				switch {
				case err != nil:
					fmt.Fprintf(out, "%s: failed: %v\n", result.GroupID, err)
				case result.Changed():
					fmt.Fprintf(out, "%s: %s: %d created, %d renamed, %d deleted, %d grants changed\n",
						result.GroupID, result.Leaf, len(result.Created), len(result.Renamed), len(result.Deleted),
						len(result.GrantsAdded)+len(result.GrantsChanged)+len(result.GrantsRemoved))
				default:
					fmt.Fprintf(out, "%s: %s: up to date\n", result.GroupID, result.Leaf)
				}
			}

			if len(args) == 1 {
				result, err := a.sync.SyncProjectGroup(ctx, args[0])
				report(result, err)
				return err
			}
			_, err = a.sync.SyncAll(ctx, func(index, total int, result projectgroups.SyncResult, err error) {
				fmt.Fprintf(out, "[%d/%d] ", index, total)
				report(result, err)
			})
			return err
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the portal's own tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.db.Migrate(cmd.Context())
		},
	}
}

// newRowAccessCommand stores a member's row-access token. The password and
// the token are read from standard input, one per line.
func newRowAccessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rowaccess:store <user>",
		Short: "Seal and store the row-access token of a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, token, err := readSecrets(cmd)
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			creds := auth.Credentials{Username: args[0], Password: password}
			if _, err := a.authn.Authenticate(cmd.Context(), creds); err != nil {
				return fmt.Errorf("cannot verify password of %s: %w", args[0], err)
			}
			return a.tokens.StoreRowAccessToken(cmd.Context(), creds, token)
		},
	}
}

func readSecrets(cmd *cobra.Command) (password, token string, err error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var lines []string
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	if len(lines) < 2 || lines[0] == "" || lines[1] == "" {
		return "", "", fmt.Errorf("expected the password and the token on standard input")
	}
	return lines[0], lines[1], nil
}
