package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/PolaGo/internal/debug"
	"github.com/fsnotify/fsnotify"
)

// spool is a Stream fed by an external capture process writing numbered
// JPEG files into a temporary directory. Every file is decoded, kept as the
// latest frame and removed.
type spool struct {
	name string
	dir  string
	op   fsnotify.Op

	cancel  context.CancelFunc
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	latest  image.Image
	exitErr error
	closed  bool

	ready     chan struct{}
	readyOnce sync.Once
	exited    chan struct{}
	closeOnce sync.Once
}

var _ Stream = (*spool)(nil)

// Swapped in tests to force the setup error paths.
var (
	makeSpoolDir = tempDir
	newWatcher   = fsnotify.NewWatcher
)

// newSpool creates the spool directory and starts watching it for files
// reported with op (Write for ffmpeg, Create for imagesnap).
func newSpool(name string, op fsnotify.Op) (_ *spool, rerr error) {
	sp := &spool{
		name:   name,
		op:     op,
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}
	defer func() {
		if rerr != nil {
			sp.Close()
		}
	}()

	dir, err := makeSpoolDir()
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %w", err)
	}
	sp.dir = dir
	debug.Verbose("%s: writing frames to %s", name, dir)

	watcher, err := newWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}
	sp.watcher = watcher
	go sp.watch()

	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("registering file change watcher for temp dir: %w", err)
	}
	return sp, nil
}

// start runs the capture process inside the spool directory. The process
// lives until Close, independently of the caller's context.
func (s *spool) start(args []string, verbose bool) error {
	debug.Verbose("starting %s with args %s", s.name, args)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	cmd := exec.CommandContext(ctx, s.name, args...)
	cmd.Dir = s.dir
	if verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if err == nil {
			err = fmt.Errorf("%s exited", s.name)
		}
		s.exitErr = err
		s.mu.Unlock()
		close(s.exited)
	}()
	return nil
}

// awaitFirstFrame blocks until a frame was decoded, the process exits, ctx
// is done or timeout elapses.
func (s *spool) awaitFirstFrame(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ready:
		return nil
	case <-s.exited:
		s.mu.RLock()
		err := s.exitErr
		s.mu.RUnlock()
		return fmt.Errorf("%w: %s stopped before the first frame: %v", ErrNoDevice, s.name, err)
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: no frame from %s after %s", ErrNoDevice, s.name, timeout)
	}
}

func (s *spool) watch() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&s.op == 0 || !strings.HasSuffix(ev.Name, ".jpg") {
				continue
			}
			img, err := decodeFile(ev.Name)
			if err != nil {
				// Partially written files show up here; the next event retries.
				debug.Trace("%s: %v", s.name, err)
				continue
			}
			if err := os.Remove(ev.Name); err != nil && !errors.Is(err, os.ErrNotExist) {
				debug.Trace("removing frame %s: %v", ev.Name, err)
			}
			s.mu.Lock()
			s.latest = img
			s.mu.Unlock()
			s.readyOnce.Do(func() { close(s.ready) })

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			debug.Error(fmt.Errorf("%s: watching for changes: %w", s.name, err))
		}
	}
}

func decodeFile(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open written file %q: %w", name, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg %q: %w", name, err)
	}
	return img, nil
}

func (s *spool) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.latest == nil {
		if s.exitErr != nil {
			return nil, fmt.Errorf("%s: %w", s.name, s.exitErr)
		}
		return nil, ErrFrameNotReady
	}
	return s.latest, nil
}

// Close stops the capture process, the watcher and removes the spool directory.
func (s *spool) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.latest = nil
		s.mu.Unlock()

		if s.cancel != nil {
			s.cancel()
		}
		if s.watcher != nil {
			s.watcher.Close()
		}
		if s.dir != "" {
			os.RemoveAll(s.dir)
		}
		debug.Verbose("%s: stream closed", s.name)
	})
	return nil
}
