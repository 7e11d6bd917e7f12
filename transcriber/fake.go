package transcriber

import (
	"context"
	"sync"
)

// Fake returns canned results in order and records every path it was given.
// When the canned results run out it repeats the last one.
type Fake struct {
	mu      sync.Mutex
	results []Result
	errs    []error
	calls   []string
	block   chan struct{}
}

func NewFake(text string, err error) *Fake {
	return &Fake{results: []Result{{Text: text, Attempts: 1}}, errs: []error{err}}
}

// Then queues another response.
func (f *Fake) Then(text string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, Result{Text: text, Attempts: 1})
	f.errs = append(f.errs, err)
	return f
}

// Block makes Transcribe wait until release is closed or ctx is done.
func (f *Fake) Block(release chan struct{}) *Fake {
	f.block = release
	return f
}

func (f *Fake) Transcribe(ctx context.Context, path string) (Result, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, path)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	return f.results[n], f.errs[n]
}

func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
