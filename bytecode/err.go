package bytecode

import (
	"errors"

	"github.com/ezrec/dvm/translate"
)

var f = translate.From

var (
	// Load errors
	ErrInvalidMagic   = errors.New(f("invalid magic"))
	ErrTruncated      = errors.New(f("truncated"))
	ErrEntryIndex     = errors.New(f("entry function index out of range"))
	ErrFunctionOffset = errors.New(f("function entry offset out of range"))
	ErrRegisterCount  = errors.New(f("register count out of range"))
	ErrKindInvalid    = errors.New(f("value kind invalid"))

	// Encode errors
	ErrArgCount      = errors.New(f("too many arguments"))
	ErrFunctionCount = errors.New(f("too many functions"))
)

// ErrLoad locates a load failure within the program buffer.
type ErrLoad struct {
	Offset int    // Byte offset of the field that failed.
	Field  string // Name of the field that failed.
	Err    error
}

func (err *ErrLoad) Error() string {
	return f("offset %v %v: %v", err.Offset, err.Field, err.Err)
}

func (err *ErrLoad) Unwrap() error {
	return err.Err
}
