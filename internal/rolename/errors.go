package rolename

import "errors"

// ErrInvalidArgument marks malformed or missing required input, e.g. a blank
// user name or entity type where one is required.
var ErrInvalidArgument = errors.New("invalid argument")
