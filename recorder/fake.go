package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Take scripts one fake recording. Empty Audio yields NoAudio.
type Take struct {
	Audio []byte
	Err   error
}

// Fake plays back scripted takes. Once they run out, recordings block
// until stopped, like a microphone waiting for speech.
type Fake struct {
	dir string

	mu     sync.Mutex
	takes  []Take
	starts int
}

func NewFake(dir string, takes ...Take) *Fake {
	return &Fake{dir: dir, takes: takes}
}

func (f *Fake) LookPath() error { return nil }

func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *Fake) Start(ctx context.Context) (*Recording, error) {
	f.mu.Lock()
	f.starts++
	n := f.starts
	var take *Take
	if len(f.takes) > 0 {
		take = &f.takes[0]
		f.takes = f.takes[1:]
	}
	f.mu.Unlock()

	created := time.Now()
	path := filepath.Join(f.dir, fmt.Sprintf("output_%d_%d.mp3", created.UnixMilli(), n))
	runCtx, cancel := context.WithCancel(ctx)
	r := newRecording(path, cancel)

	go func() {
		defer cancel()
		if take == nil {
			<-runCtx.Done()
			r.finish(Outcome{Err: ErrStopped})
			return
		}
		r.captureEnded()
		if take.Err != nil {
			r.finish(Outcome{Err: take.Err})
			return
		}
		if err := os.WriteFile(path, take.Audio, 0644); err != nil {
			r.finish(Outcome{Err: err})
			return
		}
		r.finish(inspect(path, created))
	}()
	return r, nil
}
