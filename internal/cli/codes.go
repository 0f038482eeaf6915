package cli

import (
	"errors"
	"strings"

	"github.com/roach88/uispec/internal/catalog"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Catalog errors
	ErrCodeCatalogMissing = "E101" // No top-level catalog field
	ErrCodeComponent      = "E102" // Invalid component definition
	ErrCodeAction         = "E103" // Invalid action definition

	// Session errors
	ErrCodeStream      = "E201" // Stream aborted
	ErrCodeData        = "E202" // Initial data unreadable
	ErrCodeJournal     = "E203" // Journal unavailable
	ErrCodeDeterminism = "E204" // Replay produced different trees
	ErrCodeTestsFailed = "E205" // One or more scenarios failed
)

// MapFieldToErrorCode maps a catalog compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case catalog.FieldNotFound:
		return ErrCodeNotFound
	case catalog.FieldNoFiles:
		return ErrCodeNoFiles
	case catalog.FieldLoad, "cue":
		return ErrCodeLoadFailed
	case catalog.FieldBuild:
		return ErrCodeBuildFailed
	case "catalog":
		return ErrCodeCatalogMissing
	}
	switch {
	case strings.HasPrefix(field, "components"):
		return ErrCodeComponent
	case strings.HasPrefix(field, "actions"):
		return ErrCodeAction
	}
	return ErrCodeGeneric
}

// exitCodeForField reports whether a catalog error is about the command's
// arguments (exit 2) rather than the catalog's content (exit 1).
func exitCodeForField(field string) int {
	switch field {
	case catalog.FieldNotFound, catalog.FieldNoFiles:
		return ExitCommandError
	}
	return ExitFailure
}

// catalogErrorCode returns the E-code and compile error for a Load failure.
func catalogErrorCode(err error) (string, *catalog.CompileError) {
	var ce *catalog.CompileError
	if errors.As(err, &ce) {
		return MapFieldToErrorCode(ce.Field), ce
	}
	return ErrCodeGeneric, nil
}

