package camera

import "os"

// tempDir returns a fresh spool directory, in /dev/shm when it exists so that
// frames never touch the disk.
func tempDir() (string, error) {
	// Check /dev/shm first; never create anything directly under /dev.
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "polago")
		if err == nil {
			return dir, nil
		}
	}
	return os.MkdirTemp("", "polago")
}
