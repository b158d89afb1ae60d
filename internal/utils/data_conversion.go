package utils

// Helper functions for optional record fields

func BoolPtr(b bool) *bool {
	return &b
}

func StringPtr(s string) *string {
	return &s
}

func IntPtr(i int) *int {
	return &i
}

func StringPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func IntPtrValue(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func BoolPtrValue(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// Truncate returns s cut to at most max characters. Used for bounded
// database columns where the tail carries no diagnostic value.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
