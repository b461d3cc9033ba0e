package debug

import "testing"

func TestToggles(t *testing.T) {
	t.Setenv(DebugShowBaseStringKey, "true")
	t.Setenv(DebugDeleteAfterPostKey, "false")

	if !IsDebugShowBaseString() {
		t.Error("expected base string toggle to be on")
	}
	if IsDebugDeleteAfterPost() {
		t.Error("expected delete toggle to be off")
	}
}
