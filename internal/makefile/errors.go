// pattern: Functional Core

package makefile

import "errors"

var (
	// ErrNoMakefile reports a branch directory with no Makefile in it.
	ErrNoMakefile = errors.New("no Makefile")

	// ErrMissingContent reports a directive header on the last line of
	// input, with no content line left to read the target from.
	ErrMissingContent = errors.New("directive header missing content line")

	// ErrReservedName reports an ACTION declared with the name the
	// invocation surface reserves for cancelling runs.
	ErrReservedName = errors.New("reserved action name")
)
