package upstream

import "errors"

// Sentinel errors returned by the pool manager, grouped by the component
// that raises them.
var (
	// ────────────────────────────────────────────────────────────────
	// Context errors
	// ────────────────────────────────────────────────────────────────

	// ErrAlreadyBound is returned by a second call to Context.Bind.
	ErrAlreadyBound = errors.New("upstream: context already bound")

	// ────────────────────────────────────────────────────────────────
	// Parse / construction errors
	// ────────────────────────────────────────────────────────────────

	// ErrEmptySpec is returned by AddUpstreamErr when given a blank spec.
	ErrEmptySpec = errors.New("upstream: empty upstream spec")

	// ErrNoAddresses is returned when a spec parses but resolves to no
	// usable address.
	ErrNoAddresses = errors.New("upstream: no addresses for spec")

	// ────────────────────────────────────────────────────────────────
	// Watcher errors
	// ────────────────────────────────────────────────────────────────

	// ErrEmptyMask is the panic value used when a watcher is registered
	// with an empty event mask: a programming error, not a runtime
	// condition, so it is raised via panic rather than returned.
	ErrEmptyMask = errors.New("upstream: watcher mask must not be empty")
)
