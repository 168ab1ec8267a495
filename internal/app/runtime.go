package app

import (
	"os"
	"sync"
)

var testModeOnce = sync.OnceValue(func() bool {
	return os.Getenv("MERIDIAN_TEST_MODE") == "1"
})

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return testModeOnce()
}
