package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateWorkFilename validates a filename used inside a render work area.
// Work area files are addressed relative to the work directory, so the name
// must be a plain basename:
//   - No empty names
//   - No path separators
//   - No hidden files
//   - No control characters
func ValidateWorkFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidFilename, "work area filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidFilename, "work area filename cannot contain path separators: %q", filename)
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidFilename, "work area filename cannot be a hidden file: %q", filename)
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidFilename, "work area filename contains control characters")
		}
	}

	return nil
}

// ValidateScale validates a render scale factor. The factor must be a
// positive finite number.
func ValidateScale(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return New(ErrCodeInvalidScale, "scale must be a finite number")
	}
	if scale <= 0 {
		return New(ErrCodeInvalidScale, "scale must be positive, got %g", scale)
	}
	return nil
}

// ValidateSource validates LaTeX body text before it is written to disk.
// NUL bytes are rejected because TeX engines treat them as invalid input
// characters and abort without a useful log.
func ValidateSource(src string) error {
	if strings.ContainsRune(src, '\x00') {
		return New(ErrCodeInvalidInput, "source contains NUL bytes")
	}
	return nil
}
