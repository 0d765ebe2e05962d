package changelog

import "errors"

// ErrChangeNotFound indicates that the change is not in the log
var ErrChangeNotFound = errors.New("change not found")
