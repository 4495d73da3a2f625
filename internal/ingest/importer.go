package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/dialbook/internal/phone"
	"github.com/kalambet/dialbook/internal/phonebook"
)

// maxTextFileSize bounds how much of a plain-text file is scanned.
const maxTextFileSize = 10 << 20 // 10MB

// Saver abstracts the phone book save operation.
type Saver interface {
	Save(raw string) (phonebook.SavedPhone, error)
}

// Result summarizes one import run.
type Result struct {
	Saved      []phonebook.SavedPhone
	Duplicates []string
	Invalid    []string
}

// Importer extracts phone numbers from documents and saves them.
type Importer struct {
	saver  Saver
	plan   phone.Plan
	logger *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithPlan sets the numbering plan used to split runs of digits into
// candidates. It should match the plan of the saver.
func WithPlan(p phone.Plan) Option {
	return func(im *Importer) { im.plan = p }
}

// WithLogger sets the logger import summaries are written to.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// NewImporter creates an Importer that saves through saver.
func NewImporter(saver Saver, opts ...Option) *Importer {
	im := &Importer{
		saver:  saver,
		plan:   phone.DefaultPlan,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// ImportFile reads path and imports every candidate number in it.
// PDF files are converted to plain text first.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	text, err := readText(path)
	if err != nil {
		return Result{}, err
	}
	return im.ImportText(ctx, text)
}

// ImportText saves every candidate number found in text. Rejected candidates
// are reported in the result; only storage failures and cancellation abort
// the run, returning what was saved so far.
func (im *Importer) ImportText(ctx context.Context, text string) (Result, error) {
	var res Result
	for _, c := range im.plan.FindCandidates(text) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := im.saver.Save(c)
		switch {
		case err == nil:
			res.Saved = append(res.Saved, rec)
		case errors.Is(err, phonebook.ErrDuplicateNumber):
			res.Duplicates = append(res.Duplicates, c)
		case errors.Is(err, phonebook.ErrInvalidFormat), errors.Is(err, phonebook.ErrEmptyInput):
			res.Invalid = append(res.Invalid, c)
		default:
			return res, fmt.Errorf("saving %q: %w", c, err)
		}
	}

	im.logger.Info("import complete",
		"saved", len(res.Saved),
		"duplicates", len(res.Duplicates),
		"invalid", len(res.Invalid),
	)
	return res, nil
}

func readText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxTextFileSize))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}
	return buf.String(), nil
}
