//go:build !unix && !windows

package filelock

import "os"

// Platforms without advisory locks rely on the in-process mutex only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
