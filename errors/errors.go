// Package errors defines the error taxonomy used throughout fat12img. All
// errors are values, never exceptions: every function that can fail returns
// a FatError (or nil), and callers decide whether to print and continue or
// abort.
package errors

import "fmt"

// FatError is a string-constant error, one per entry in the taxonomy. It
// implements the `error` interface directly so it can be compared with
// `==` and matched with `errors.Is`.
type FatError string

func (e FatError) Error() string { return string(e) }

// WithMessage attaches additional context to the error without losing its
// identity: errors.Is(result, e) still holds.
func (e FatError) WithMessage(message string) DetailedError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", string(e), message),
		parent:  e,
	}
}

// Wrap attaches an underlying error without losing the taxonomy entry's
// identity: errors.Is(result, e) and errors.Is(result, err) both hold.
func (e FatError) Wrap(err error) DetailedError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", string(e), err.Error()),
		parent:  e,
		cause:   err,
	}
}

// The error taxonomy, per the system's error handling design. Every error
// surfaced from the fat12 engine or the grub installer is one of these,
// optionally decorated with WithMessage/Wrap.
const (
	// ErrIO indicates the underlying block device read or write failed.
	// Out-of-range sector indices are not reported this way: the block
	// device panics on them.
	ErrIO = FatError("I/O error")

	// ErrNotFat12 indicates the BPB failed validation: the 0x55AA boot
	// signature was missing, bytes_per_sector, sectors_per_cluster or the
	// table count was zero, or total_clusters was not less than 4085.
	ErrNotFat12 = FatError("not a FAT12 file system")

	// ErrNoSpace indicates no free cluster was available when one was
	// required.
	ErrNoSpace = FatError("no space left on device")

	// ErrNotFound indicates a name lookup missed in the current directory.
	ErrNotFound = FatError("no such file or directory")

	// ErrInvalidArg indicates malformed input, such as an extension that
	// isn't exactly 3 characters when strict parsing is requested.
	ErrInvalidArg = FatError("invalid argument")

	// ErrExists indicates a create operation targeted a name that is
	// already in use by a `used` directory entry.
	ErrExists = FatError("file exists")

	// ErrGrubIncompatible indicates stage1 or stage2 failed the GRUB
	// compatibility checks.
	ErrGrubIncompatible = FatError("incompatible GRUB stage1/stage2")

	// ErrGrubMissingFile indicates stage1 or stage2 could not be read from
	// the host file system.
	ErrGrubMissingFile = FatError("GRUB stage file not found")
)

// DetailedError is a FatError decorated with additional context, optionally
// wrapping an underlying cause. It supports further decoration and
// errors.Unwrap.
type DetailedError interface {
	error
	WithMessage(message string) DetailedError
	Wrap(err error) DetailedError
	Unwrap() error
}

type detailedError struct {
	message string
	parent  FatError
	cause   error
}

func (e detailedError) Error() string { return e.message }

func (e detailedError) WithMessage(message string) DetailedError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", e.message, message),
		parent:  e.parent,
		cause:   e.cause,
	}
}

func (e detailedError) Wrap(err error) DetailedError {
	return detailedError{
		message: fmt.Sprintf("%s: %s", e.message, err.Error()),
		parent:  e.parent,
		cause:   err,
	}
}

// Unwrap exposes the underlying cause, if any, falling back to the
// taxonomy entry so errors.Is(err, ErrNotFound) keeps working after
// decoration.
func (e detailedError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.parent
}

// Is reports whether target is the taxonomy entry this error was decorated
// from, so errors.Is still matches it when Unwrap yields a wrapped cause.
func (e detailedError) Is(target error) bool {
	return target == e.parent
}
