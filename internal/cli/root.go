// Package cli implements ledgerctl, the operator tool for the points ledger.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"halaqa-points-api/internal/bootstrap"
	"halaqa-points-api/internal/config"
	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/repository"
	"halaqa-points-api/internal/store"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // Rejected operation (insufficient funds, unknown user)
	ExitCommandError = 2 // Invalid flags, unreachable database
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RepositoryOpener opens the ledger repository for a command.
type RepositoryOpener func(cfg config.LedgerDBConfig) (repository.LedgerRepository, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
	DBType  string
	DBPath  string

	// Open defaults to bootstrap.OpenLedgerRepository.
	Open RepositoryOpener
}

// NewRootCommand creates the root command for ledgerctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: bootstrap.OpenLedgerRepository})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "ledgerctl - operate the halaqa points ledger",
		Long:  "Inspect and maintain the points ledger: award points, list the leaderboard and repair corrupt records.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			logger.SetDebug(opts.Verbose)
			logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBType, "db-type", "", "ledger database type, overrides LEDGER_DB_TYPE")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path, overrides LEDGER_DB_PATH")

	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newCreditCommand(opts))
	cmd.AddCommand(newLeaderboardCommand(opts))
	cmd.AddCommand(newRedemptionsCommand(opts))
	cmd.AddCommand(newRepairCommand(opts))

	return cmd
}

// openStore opens the configured repository and wraps it in a store.
func (o *RootOptions) openStore() (*store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.DBType != "" {
		cfg.LedgerDB.Type = o.DBType
	}
	if o.DBPath != "" {
		cfg.LedgerDB.Path = o.DBPath
	}

	repo, err := o.Open(cfg.LedgerDB)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open ledger database", err)
	}
	st := store.New(repo, nil, bootstrap.StoreConfig(cfg.Ledger, nil))
	return st, func() { _ = repo.Close() }, nil
}

func (o *RootOptions) output(w io.Writer, data interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(w)
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
