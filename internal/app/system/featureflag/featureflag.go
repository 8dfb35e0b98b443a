// internal/app/system/featureflag/featureflag.go

// Package featureflag exposes feature availability as an injected
// capability check rather than a module-level flag, so tests can toggle
// features per case.
package featureflag

// Feature names checked by handlers.
const (
	Circles = "CIRCLES"
)

// Checker reports whether a named feature is available.
type Checker interface {
	Enabled(feature string) bool
}

// StaticChecker is a Checker backed by a fixed set of enabled features.
// The bootstrap wires one up from AppConfig; tests construct their own.
type StaticChecker struct {
	enabled map[string]bool
}

// NewStaticChecker builds a StaticChecker with the given features enabled.
func NewStaticChecker(features ...string) *StaticChecker {
	m := make(map[string]bool, len(features))
	for _, f := range features {
		m[f] = true
	}
	return &StaticChecker{enabled: m}
}

func (c *StaticChecker) Enabled(feature string) bool {
	return c.enabled[feature]
}
