// cmd/cartctl/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ammerola/clothify-cart/internal/pkg/logger"
)

var (
	verbose    bool
	backendURL string
	timeout    time.Duration
	customerID string
	token      string

	log *logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cartctl",
	Short: "Inspect and repair CLOTHIFY carts",
	Long: `cartctl talks to the CLOTHIFY backend with the same client, normalizer
and stock reconciler the cart API uses.

Configuration is read from the environment exactly like the API. Output is
JSON on stdout; logs go to stderr.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		log = logger.NewLoggerWithWriter(&logger.LogConfig{
			Level:  level,
			Format: "text",
		}, cmd.ErrOrStderr())

		if backendURL != "" {
			return os.Setenv("BACKEND_BASE_URL", backendURL)
		}
		return nil
	},
}

// normalizeCmd prints the normalized form of a raw cart payload
var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Normalize a raw cart payload",
	Long: `Reads a CLOTHIFY cart payload from a file, or stdin when no file or "-"
is given, and prints the cart lines with resolved stock and totals.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNormalize,
}

// showCmd prints a customer's cart without writing anything
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a customer's cart with resolved stock",
	RunE:  runShow,
}

// reconcileCmd loads a cart through the cart service, persisting stock corrections
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Clamp a customer's cart to available stock",
	Long: `Loads the cart the way the storefront does. Lines above available stock
are written back at the stock level and sold-out lines are removed.`,
	RunE: runReconcile,
}

// clearCmd empties a customer's cart
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every line from a customer's cart",
	RunE:  runClear,
}

// migrateCmd applies the ledger schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply ledger database migrations",
	Long: `Applies every pending ledger migration. --steps moves the schema a
fixed number of versions (negative rolls back) and --status only prints the
applied version.`,
	RunE: runMigrate,
}

// tokenCmd mints a session token for local testing
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed session token",
	Long:  `Signs a session token with JWT_SECRET. Intended for local and staging use.`,
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "CLOTHIFY backend base URL (or set BACKEND_BASE_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	for _, cmd := range []*cobra.Command{showCmd, reconcileCmd, clearCmd, tokenCmd} {
		cmd.Flags().StringVarP(&customerID, "customer", "c", "", "Customer id (required)")
		_ = cmd.MarkFlagRequired("customer")
	}
	for _, cmd := range []*cobra.Command{showCmd, reconcileCmd, clearCmd} {
		cmd.Flags().StringVar(&token, "token", "", "Bearer token (or set CLOTHIFY_TOKEN; minted from JWT_SECRET when empty)")
	}
	clearCmd.Flags().Bool("yes", false, "Confirm clearing the cart")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	migrateCmd.Flags().Int("steps", 0, "Apply n migrations, or roll back when negative")
	migrateCmd.Flags().Bool("status", false, "Print the applied schema version")
	migrateCmd.MarkFlagsMutuallyExclusive("steps", "status")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
