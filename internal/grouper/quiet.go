package grouper

import "os"

// quiet redirects stdout/stderr to /dev/null for the duration of fn, then
// restores them on every exit path (including panic). The optional
// embedding client's library writes progress noise directly to both
// streams; this is the only way to suppress it without forking the
// dependency.
func quiet(fn func()) {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		fn()
		return
	}
	defer devNull.Close()

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = devNull, devNull
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	fn()
}
