package navigation

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below wrap these so callers can use
// errors.Is without caring about the detail.
var (
	ErrConfiguration = errors.New("navigation: invalid route configuration")
	ErrGuardFailure  = errors.New("navigation: guard failed")
	ErrModuleLoad    = errors.New("navigation: module load failed")
	ErrSuperseded    = errors.New("navigation: superseded by a newer navigation")
)

// ConfigurationError reports a malformed route table or resolver setup.
// It is fatal at startup.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("navigation: configuration: %s", e.Reason)
	}
	return fmt.Sprintf("navigation: configuration: %s (path %q)", e.Reason, e.Path)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErr(path, format string, args ...any) error {
	return &ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// GuardFailure reports a guard whose check itself errored without supplying
// a fallback, as opposed to a guard that denied.
type GuardFailure struct {
	Guard string
	Path  string
	Err   error
}

func (e *GuardFailure) Error() string {
	return fmt.Sprintf("navigation: guard %q failed for %q: %v", e.Guard, e.Path, e.Err)
}

func (e *GuardFailure) Unwrap() error { return e.Err }

func (e *GuardFailure) Is(target error) bool { return target == ErrGuardFailure }

// ModuleLoadFailure reports a lazy bundle that could not be fetched or did
// not expose the requested sub-table.
type ModuleLoadFailure struct {
	Ref    ModuleRef
	Export string
	Err    error
}

func (e *ModuleLoadFailure) Error() string {
	if e.Export != "" {
		return fmt.Sprintf("navigation: load module %q (export %q): %v", e.Ref, e.Export, e.Err)
	}
	return fmt.Sprintf("navigation: load module %q: %v", e.Ref, e.Err)
}

func (e *ModuleLoadFailure) Unwrap() error { return e.Err }

func (e *ModuleLoadFailure) Is(target error) bool { return target == ErrModuleLoad }
