package indexerrors

import "errors"

// As is a thin re-export of errors.As so callers only need to import this
// package when working with the taxonomy above.
func As(err error, target any) bool {
	return errors.As(err, target)
}
