package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This is useful when a shared backend such as Redis is also used by other
// applications, or by inktex instances running different configurations.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "inktex:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RenderKey generates a prefixed key for converter output caching.
func (k *ScopedKeyer) RenderKey(family, document string) string {
	return k.prefix + k.inner.RenderKey(family, document)
}
