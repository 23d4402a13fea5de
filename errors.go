package recolte

import "errors"

// ErrInvalidInput is returned when a URL fails validation before any
// acquisition work starts.
var ErrInvalidInput = errors.New("recolte: invalid input")
