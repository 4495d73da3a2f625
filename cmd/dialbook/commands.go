package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kalambet/dialbook/internal/api"
	"github.com/kalambet/dialbook/internal/config"
	"github.com/kalambet/dialbook/internal/ingest"
	"github.com/kalambet/dialbook/internal/phonebook"
	"github.com/kalambet/dialbook/internal/storage"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// bookHandle bundles an open database with the phone book loaded from it.
type bookHandle struct {
	cfg  config.Config
	db   *storage.Store
	book *phonebook.Store
}

func openBook(logger *slog.Logger) (*bookHandle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	book := phonebook.New(db,
		phonebook.WithPlan(cfg.Phone.Plan()),
		phonebook.WithSlotKey(cfg.Storage.SlotKey),
		phonebook.WithLogger(logger),
	)
	book.Load()

	return &bookHandle{cfg: cfg, db: db, book: book}, nil
}

func (h *bookHandle) Close() error {
	return h.db.Close()
}

// openCLIBook opens the phone book with a logger that only reports problems,
// leaving routine save and delete events to the command's own output.
func openCLIBook(cmd *cobra.Command) (*bookHandle, error) {
	return openBook(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// saveMessage is the user-facing text for a rejected save.
func saveMessage(err error) string {
	switch {
	case errors.Is(err, phonebook.ErrEmptyInput):
		return "please enter a phone number"
	case errors.Is(err, phonebook.ErrInvalidFormat):
		return "please enter a valid phone number"
	case errors.Is(err, phonebook.ErrDuplicateNumber):
		return "this phone number is already saved"
	default:
		return err.Error()
	}
}

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save <number...>",
	Short: "Validate, normalize and save a phone number",
	Long: `Validate, normalize and save a phone number.

Examples:
  dialbook save "(403) 999-5825"
  dialbook save 1 403 999 5825`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		rec, err := b.Save(strings.Join(args, " "))
		if errors.Is(err, phonebook.ErrDuplicateNumber) {
			printWarning(cmd.ErrOrStderr(), "%s", saveMessage(err))
			return nil
		}
		if err != nil {
			if errors.Is(err, phonebook.ErrEmptyInput) || errors.Is(err, phonebook.ErrInvalidFormat) {
				return errors.New(saveMessage(err))
			}
			return err
		}

		printSuccess(cmd.OutOrStdout(), "Saved %s (%s)", b.Plan().FormatForDisplay(rec.Number), shortID(rec.ID))
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved phone numbers, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		phones, err := b.List()
		if err != nil {
			return err
		}
		plan := b.Plan()
		w := cmd.OutOrStdout()

		if asJSON {
			out := make([]api.PhoneModel, len(phones))
			for i, p := range phones {
				out[i] = api.PhoneModel{
					ID:        p.ID,
					Number:    p.Number,
					Display:   plan.FormatForDisplay(p.Number),
					Timestamp: p.Timestamp,
				}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		if len(phones) == 0 {
			fmt.Fprintln(w, "No saved phone numbers.")
			return nil
		}
		for _, p := range phones {
			fmt.Fprintf(w, "%s  %s  %s\n",
				colorize(styleCyan, shortID(p.ID)),
				plan.FormatForDisplay(p.Number),
				colorize(styleFaint, p.SavedAt().Local().Format("2006-01-02 15:04")),
			)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "print as JSON")
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved phone number by id or unique id prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		rec, err := resolve(b, args[0])
		if err != nil {
			return fmt.Errorf("resolving %q: %w", args[0], err)
		}
		if err := b.Delete(rec.ID); err != nil {
			return err
		}

		printSuccess(cmd.OutOrStdout(), "Deleted %s", b.Plan().FormatForDisplay(rec.Number))
		return nil
	},
}

// --- copy ---

var copyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Copy a saved phone number to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		rec, err := resolve(b, args[0])
		if err != nil {
			return fmt.Errorf("resolving %q: %w", args[0], err)
		}
		if err := writeClipboard(rec.Number); err != nil {
			return fmt.Errorf("writing clipboard: %w", err)
		}

		printSuccess(cmd.OutOrStdout(), "Copied %s", rec.Number)
		return nil
	},
}

// --- format / validate ---

var formatCmd = &cobra.Command{
	Use:   "format <number...>",
	Short: "Print the E.164 and display forms of a phone number",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		plan := cfg.Phone.Plan()
		raw := strings.Join(args, " ")

		e164 := plan.FormatToE164(raw)
		w := cmd.OutOrStdout()
		printStatus(w, "E.164", "%s", e164)
		printStatus(w, "Display", "%s", plan.FormatForDisplay(e164))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <number...>",
	Short: "Check whether a phone number can be saved",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		plan := cfg.Phone.Plan()
		raw := strings.Join(args, " ")

		if !plan.IsValid(raw) {
			return fmt.Errorf("%q is not a valid phone number", raw)
		}
		printSuccess(cmd.OutOrStdout(), "%s is valid", plan.FormatForDisplay(plan.FormatToE164(raw)))
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save every phone number found in a text or PDF file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		plan := b.Plan()
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
		im := ingest.NewImporter(b, ingest.WithPlan(plan), ingest.WithLogger(logger))
		res, err := im.ImportFile(cmd.Context(), args[0])

		w := cmd.OutOrStdout()
		for _, rec := range res.Saved {
			printSuccess(w, "Saved %s", plan.FormatForDisplay(rec.Number))
		}
		for _, c := range res.Duplicates {
			printWarning(cmd.ErrOrStderr(), "Already saved: %s", c)
		}
		for _, c := range res.Invalid {
			printWarning(cmd.ErrOrStderr(), "Skipped invalid: %s", c)
		}
		if err != nil {
			return err
		}

		printStatus(w, "Imported", "%d saved, %d duplicate, %d invalid", len(res.Saved), len(res.Duplicates), len(res.Invalid))
		return nil
	},
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export or purge stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved phone numbers as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		phones, err := b.List()
		if err != nil {
			return err
		}

		var writer io.Writer
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		} else {
			writer = cmd.OutOrStdout()
		}

		enc := json.NewEncoder(writer)
		for _, p := range phones {
			record := map[string]any{"type": "phone", "data": p}
			if err := enc.Encode(record); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
		}

		if output != "" {
			printSuccess(cmd.ErrOrStderr(), "Data exported to %s", output)
		}
		return nil
	},
}

var dataPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all saved phone numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning(cmd.ErrOrStderr(), "This will delete ALL saved phone numbers. Use --confirm to proceed.")
			return nil
		}

		b, err := openPhoneBook(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		phones, err := b.List()
		if err != nil {
			return err
		}
		printStep(cmd.ErrOrStderr(), "Deleting %d saved phone numbers...", len(phones))
		if err := b.Clear(); err != nil {
			return fmt.Errorf("purging: %w", err)
		}

		printSuccess(cmd.OutOrStdout(), "All data purged")
		return nil
	},
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataPurgeCmd.Flags().Bool("confirm", false, "confirm data purge")
	dataCmd.AddCommand(dataExportCmd)
	dataCmd.AddCommand(dataPurgeCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(styleBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess(cmd.OutOrStdout(), "Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
