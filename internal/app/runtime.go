package app

import "os"

const testModeEnv = "HARBORLINE_TEST_MODE"

// InTestMode reports whether the binaries should skip runtime side effects
// (listening sockets, queue consumers). Set HARBORLINE_TEST_MODE=1 in CI
// smoke checks that only need the binary to start and exit cleanly.
func InTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}
