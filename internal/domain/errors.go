package domain

import "errors"

// Sentinel errors shared across the repository and service layers.
// Structural invariant violations surface to the caller; numeric edge cases
// (zero-norm vectors, empty candidate pools) never do.
var (
	// ErrNotFound reports that a referenced post, category, or user is absent.
	ErrNotFound = errors.New("entity not found")

	// ErrNoProfile reports that a user has no interest vector; the caller
	// decides the fallback (e.g. popularity-based).
	ErrNoProfile = errors.New("user has no interest profile")

	// ErrInsufficientData reports that an aggregate cannot be computed from
	// the available data (e.g. a category with fewer than two posts).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrBackendUnavailable reports that the primary embedding backend failed
	// to load; callers fall back rather than abort.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrSelfSimilarity rejects a similarity record pairing a post with itself.
	ErrSelfSimilarity = errors.New("a post cannot be similar to itself")

	// ErrScoreOutOfRange rejects a similarity score outside [0, 1].
	ErrScoreOutOfRange = errors.New("similarity score must be between 0.0 and 1.0")

	// ErrSelfParent rejects a category referencing itself as parent.
	ErrSelfParent = errors.New("category cannot be its own parent")

	// ErrCategoryCycle rejects a parent assignment whose ancestor chain
	// includes the category itself.
	ErrCategoryCycle = errors.New("category hierarchy must not contain cycles")

	// ErrMaxDepthExceeded rejects a hierarchy deeper than MaxCategoryDepth.
	ErrMaxDepthExceeded = errors.New("category hierarchy too deep")
)
