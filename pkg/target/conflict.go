package target

import "strings"

// 🤝 ConflictFunc reports whether two targets may not be deployed to at the same time
type ConflictFunc func(a, b *Target) bool

// SameOrGrouped is the default conflict rule: identical targets, or targets sharing a non-empty group
func SameOrGrouped(a, b *Target) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b || (a.ID != "" && a.ID == b.ID) {
		return true
	}
	ga, gb := strings.TrimSpace(a.Group), strings.TrimSpace(b.Group)
	return ga != "" && strings.EqualFold(ga, gb)
}

// SameOnly treats only identical targets as conflicting
func SameOnly(a, b *Target) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || (a.ID != "" && a.ID == b.ID)
}
