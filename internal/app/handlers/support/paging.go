package support

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ClampPage normalizes list pagination: limit falls back to the default when
// unset and is capped at MaxPageLimit; negative offsets become zero.
func ClampPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
