package debug

import "os"

const (
	DebugShowBaseStringKey  = "DEBUG_SHOW_BASE_STRING"
	DebugDeleteAfterPostKey = "DEBUG_DELETE_AFTER_POST"
)

func isDebugShowBaseStringSet() bool {
	return os.Getenv(DebugShowBaseStringKey) == "true"
}

func isDebugDeleteAfterPostSet() bool {
	return os.Getenv(DebugDeleteAfterPostKey) == "true"
}
