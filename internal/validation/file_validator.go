// Package validation checks uploads, CLI paths and request bodies before
// they reach the pipeline.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "integralq/internal/errors"
)

// Default upload limits.
const (
	DefaultMaxFiles = 10
	DefaultMaxBytes = 50 << 20
)

var allowedExtensions = map[string]bool{
	".csv": true, ".json": true, ".xlsx": true, ".xls": true,
}

// Limits bounds one analysis request.
type Limits struct {
	MaxFiles int
	MaxBytes int64
}

// Upload is one file as seen before parsing.
type Upload struct {
	Name string
	Size int64
}

// FileValidator provides file and request validation for the server and the CLI
type FileValidator struct {
	logger   *slog.Logger
	limits   Limits
	validate *validator.Validate
}

// NewFileValidator creates a new file validator. Zero limits take the defaults.
func NewFileValidator(logger *slog.Logger, limits Limits) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultMaxFiles
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}

	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &FileValidator{
		logger:   logger.With(slog.String("component", "file_validator")),
		limits:   limits,
		validate: v,
	}
}

// Limits returns the effective limits.
func (v *FileValidator) Limits() Limits { return v.limits }

// SupportedExtension reports whether name has an extension the cleaner reads.
func SupportedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateUploads checks count, names, extensions and sizes.
func (v *FileValidator) ValidateUploads(files []Upload) error {
	if len(files) == 0 {
		return apperrors.NewNoDataError("no files were uploaded")
	}
	if len(files) > v.limits.MaxFiles {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("too many files: %d uploaded, at most %d allowed", len(files), v.limits.MaxFiles))
	}

	var total int64
	for _, f := range files {
		if err := v.ValidateUpload(f); err != nil {
			return err
		}
		total += f.Size
	}
	if total > v.limits.MaxBytes {
		v.logger.Warn("upload batch too large",
			slog.Int64("size", total),
			slog.Int64("max_size", v.limits.MaxBytes))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", total, v.limits.MaxBytes)).
			WithContext("max_bytes", v.limits.MaxBytes)
	}
	return nil
}

// ValidateUpload checks one file.
func (v *FileValidator) ValidateUpload(f Upload) error {
	name := filepath.Base(strings.TrimSpace(f.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return apperrors.NewAppValidationError("file name is required")
	}
	if !SupportedExtension(name) {
		v.logger.Warn("rejected upload with unsupported extension",
			slog.String("file", name),
			slog.String("extension", filepath.Ext(name)))
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s: unsupported file type %q (expected .csv, .json, .xlsx or .xls)", name, filepath.Ext(name))).
			WithContext("file", name)
	}
	if strings.HasPrefix(name, "~$") {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is a temporary Excel file", name)).
			WithContext("file", name)
	}
	if f.Size == 0 {
		return apperrors.NewAppValidationError(fmt.Sprintf("%s is empty", name)).
			WithContext("file", name)
	}
	if f.Size > v.limits.MaxBytes {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("%s is %d bytes, above the %d byte limit", name, f.Size, v.limits.MaxBytes)).
			WithContext("file", name)
	}
	return nil
}

// ValidateFile checks that a local input exists, is a regular readable file
// and has a supported extension.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	if err := v.ValidateUpload(Upload{Name: path, Size: info.Size()}); err != nil {
		return err
	}

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)
	return nil
}

// Struct validates a request body against its `validate` tags.
func (v *FileValidator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.InvalidRequestWithError(err)
	}
	out := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apperrors.ValidationError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apperrors.NewValidationErrors(out)
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
