package cli

import "errors"

// ErrUsage marks errors caused by a bad invocation (missing flags, invalid
// values, unreadable inputs) as opposed to generation failures. main exits
// with a distinct code for these.
var ErrUsage = errors.New("cli usage error")

// usageError carries a user-facing message and matches ErrUsage via Is.
type usageError struct{ msg string }

func newUsageError(msg string) error { return usageError{msg: msg} }

func (e usageError) Error() string { return e.msg }

func (e usageError) Is(target error) bool { return target == ErrUsage }
