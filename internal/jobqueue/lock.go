package jobqueue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"geotagger/internal/services"
)

// LockFileName is created in every output root a job writes to.
const LockFileName = ".geotagger.lock"

// acquireRootLock takes a non-blocking exclusive lock on root.
func acquireRootLock(root string) (*flock.Flock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobqueue", "lock output root", "", fmt.Errorf("create output root: %w", err))
	}
	lock := flock.New(filepath.Join(root, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobqueue", "lock output root", "", fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "jobqueue", "lock output root",
			fmt.Sprintf("another geotagger process is writing to %s", root), nil)
	}
	return lock, nil
}
