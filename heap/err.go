package heap

import (
	"errors"

	"github.com/ezrec/dvm/translate"
)

var f = translate.From

var (
	ErrIndex    = errors.New(f("heap slot never allocated"))
	ErrFreed    = errors.New(f("heap slot freed"))
	ErrFull     = errors.New(f("heap full"))
	ErrBounds   = errors.New(f("heap access out of bounds"))
	ErrWordSize = errors.New(f("heap word size invalid"))
)
