package utility

import "testing"

// UseFastKDFForTest swaps in cheap argon2 parameters for the duration of a
// test.
func UseFastKDFForTest(t testing.TB) {
	t.Helper()
	orig := currentKDFParams()
	setKDFParams(KDFParams{Time: 1, Memory: 1024, Threads: 1})
	t.Cleanup(func() { setKDFParams(orig) })
}
