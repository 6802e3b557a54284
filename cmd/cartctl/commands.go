// cmd/cartctl/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ammerola/clothify-cart/internal/adapters/db"
	"github.com/ammerola/clothify-cart/internal/adapters/memory"
	"github.com/ammerola/clothify-cart/internal/adapters/notify"
	"github.com/ammerola/clothify-cart/internal/bootstrap"
	"github.com/ammerola/clothify-cart/internal/core/domain"
	"github.com/ammerola/clothify-cart/internal/core/services"
	"github.com/ammerola/clothify-cart/internal/pkg/auth"
	"github.com/ammerola/clothify-cart/internal/pkg/config"
)

// report is what mutating commands print.
type report struct {
	Cart    *domain.CartView `json:"cart"`
	Notices []domain.Notice  `json:"notices"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		in = f
	}

	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	lines, err := domain.UnpackCart(payload)
	if err != nil {
		return fmt.Errorf("failed to normalize cart: %w", err)
	}
	for i := range lines {
		lines[i].AvailableStock = domain.ResolveStock(lines[i])
	}
	return printJSON(cmd.OutOrStdout(), domain.NewCartView("", lines, nil))
}

func runShow(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, session, err := loadSession()
	if err != nil {
		return err
	}
	client, err := bootstrap.NewBackend(cfg, log.Logger, nil)
	if err != nil {
		return err
	}

	lines, err := services.NewCartFetcher(client, nil, log.Logger).Fetch(ctx, session)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].AvailableStock = domain.ResolveStock(lines[i])
	}
	return printJSON(cmd.OutOrStdout(), domain.NewCartView(session.CustomerID, lines, nil))
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, notices, session, err := newService()
	if err != nil {
		return err
	}
	view, err := svc.Load(ctx, session)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report{Cart: view, Notices: notices.Drain(session.CustomerID)})
}

func runClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errors.New("refusing to clear the cart without --yes")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, notices, session, err := newService()
	if err != nil {
		return err
	}
	view, err := svc.Clear(ctx, session)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report{Cart: view, Notices: notices.Drain(session.CustomerID)})
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := config.Load(log.Logger)
	if err != nil {
		return err
	}

	steps, _ := cmd.Flags().GetInt("steps")
	statusOnly, _ := cmd.Flags().GetBool("status")
	if steps == 0 && !statusOnly {
		if err := bootstrap.RunMigrations(ctx, cfg, log.Logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	}

	migrator, err := bootstrap.OpenMigrator(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	var status db.MigrationStatus
	if statusOnly {
		status, err = migrator.Status()
	} else {
		status, err = migrator.Steps(ctx, steps)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), status)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(log.Logger)
	if err != nil {
		return err
	}
	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set: %w", config.ErrMissingRequiredConfig)
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	signed, err := auth.MintToken(cfg.Security.JWTSecret, customerID, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}

// newService builds a cart service over an in-memory ledger. Stock
// corrections that fail are reported, not queued.
func newService() (*services.CartService, *notify.Recorder, domain.Session, error) {
	cfg, session, err := loadSession()
	if err != nil {
		return nil, nil, domain.Session{}, err
	}
	client, err := bootstrap.NewBackend(cfg, log.Logger, nil)
	if err != nil {
		return nil, nil, domain.Session{}, err
	}

	notices := notify.NewRecorder(cfg.Cart.NoticeCapacity)
	svc := services.NewCartService(services.CartServiceDeps{
		Backend:  client,
		Ledgers:  memory.NewLedgerStore(),
		Notifier: notices,
		Logger:   log.Logger,
	}, services.CartServiceOptions{
		CorrectionConcurrency: cfg.Cart.CorrectionConcurrency,
	})
	return svc, notices, session, nil
}

func loadSession() (*config.Config, domain.Session, error) {
	cfg, err := config.Load(log.Logger)
	if err != nil {
		return nil, domain.Session{}, err
	}

	bearer := token
	if bearer == "" {
		bearer = os.Getenv("CLOTHIFY_TOKEN")
	}
	if bearer == "" && cfg.Security.JWTSecret != "" {
		bearer, err = auth.MintToken(cfg.Security.JWTSecret, customerID, 10*time.Minute, time.Now())
		if err != nil {
			return nil, domain.Session{}, err
		}
	}
	if bearer == "" {
		return nil, domain.Session{}, errors.New("no token: pass --token, set CLOTHIFY_TOKEN or JWT_SECRET")
	}
	return cfg, domain.Session{CustomerID: customerID, Token: bearer}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
