package splitter

import (
	"os"

	"github.com/gofrs/flock"
)

// inputLock holds an advisory lock on an input audiobook for the duration of
// its split, so two runs never cut the same book into the same folder.
type inputLock struct {
	lock *flock.Flock
}

// acquireInputLock takes a non-blocking exclusive lock on path. The file is
// opened read-only and never created, so an input removed since discovery
// fails here instead of coming back empty. It returns ErrLocked when the lock
// cannot be taken.
func acquireInputLock(path string) (*inputLock, error) {
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, Wrap(ErrLocked, "split", "lock input", path, err)
	}
	if !ok {
		return nil, Wrap(ErrLocked, "split", "lock input", "held by another run: "+path, nil)
	}
	return &inputLock{lock: lock}, nil
}

func (l *inputLock) release() {
	if l == nil || l.lock == nil {
		return
	}
	_ = l.lock.Unlock()
}
