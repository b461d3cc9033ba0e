// Package debug exposes developer toggles read from the environment.
package debug

const (
	Debug = true
)

// IsDebugShowBaseString reports whether signature base strings should be logged.
// Base strings contain no secrets, only the signed parameters.
func IsDebugShowBaseString() bool {
	return Debug && isDebugShowBaseStringSet()
}

// IsDebugDeleteAfterPost reports whether a posted status should be destroyed right
// away, which keeps test accounts clean.
func IsDebugDeleteAfterPost() bool {
	return Debug && isDebugDeleteAfterPostSet()
}
