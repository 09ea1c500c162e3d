package rolloc

import (
	"errors"

	"github.com/ezrec/stax/translate"
)

var f = translate.From

var (
	// Chain errors
	ErrSizeInvalid     = errors.New(f("size invalid"))
	ErrBlockUnknown    = errors.New(f("block not in chain"))
	ErrPositionInvalid = errors.New(f("position not in chain"))
	ErrTagUnknown      = errors.New(f("no block with tag"))
)
