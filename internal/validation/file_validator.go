package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apierrors "tenderdash/internal/errors"
)

// OutputFormat is the kind of file a snapshot is written to.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatXLSX OutputFormat = "xlsx"
)

// FileValidator checks local paths before the command line tools touch them.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateSourceFile checks that path is a readable, non-empty regular file
// no larger than maxBytes. A maxBytes of zero disables the size check.
func (v *FileValidator) ValidateSourceFile(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Source file does not exist", slog.String("file", path))
		return apierrors.NewLoadError(path, fmt.Errorf("file does not exist"))
	}
	if err != nil {
		return apierrors.NewLoadError(path, err)
	}
	if info.IsDir() {
		v.logger.Error("Source path is a directory", slog.String("path", path))
		return apierrors.NewLoadError(path, fmt.Errorf("%s is a directory, not a file", path))
	}
	if info.Size() == 0 {
		return apierrors.NewLoadError(path, fmt.Errorf("file is empty"))
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		v.logger.Error("Source file too large",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("max_bytes", maxBytes))
		return apierrors.NewLoadError(path, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), maxBytes))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Source file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apierrors.NewLoadError(path, err)
	}
	file.Close()

	v.logger.Debug("Source file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures dir exists or can be created, and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewExportError("cannot create output directory "+dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewExportError("output directory "+dir+" is not writable", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ResolveOutput picks the output format from the file extension and checks
// the target directory. An empty path means JSON on stdout.
func (v *FileValidator) ResolveOutput(path string) (OutputFormat, error) {
	if path == "" {
		return FormatJSON, nil
	}

	var format OutputFormat
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		format = FormatJSON
	case ".xlsx":
		format = FormatXLSX
	default:
		return "", apierrors.NewAppValidationError(fmt.Sprintf("unsupported output %q: use a .json or .xlsx path", path))
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		return "", apierrors.NewAppValidationError(fmt.Sprintf("%s looks like an Excel lock file", path))
	}

	if err := v.ValidateOutputDirectory(filepath.Dir(path)); err != nil {
		return "", err
	}
	return format, nil
}
