package format

// DerefString safely dereferences a *string and returns a default value if nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// DerefInt64 safely dereferences a *int64 and returns a default value if nil.
func DerefInt64(i *int64, defaultVal int64) int64 {
	if i != nil {
		return *i
	}
	return defaultVal
}

// Ptr returns a pointer to v; handy for optional columns.
func Ptr[T any](v T) *T { return &v }

// NilIfEmpty maps "" to nil for nullable text columns.
func NilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
