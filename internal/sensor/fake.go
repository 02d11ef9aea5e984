package sensor

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted samples. Each Read
// consumes the next sample set; when exhausted, the last set repeats.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted reading sets to return, in order.
	Samples [][]Reading

	// ReadErr, if set, is returned by Read.
	ReadErr error

	index  int
	Closed bool
}

// NewFakeReader creates a FakeReader with the given sample sets.
func NewFakeReader(samples [][]Reading) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample set.
func (f *FakeReader) Read() ([]Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	out := make([]Reading, len(s))
	copy(out, s)
	return out, nil
}

// Set replaces the script with a single steady sample set.
func (f *FakeReader) Set(readings ...Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = [][]Reading{readings}
	f.index = 0
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
