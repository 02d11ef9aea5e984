package gpio

import (
	"errors"
	"sync"
)

// FakeOutput is a test double that records every Set call.
type FakeOutput struct {
	mu sync.Mutex

	// On is the current logical state.
	On bool

	// History records every Set value, in order.
	History []bool

	// SetErr, if set, is returned by Set.
	SetErr error

	Closed bool
}

// NewFakeOutput creates a de-energized fake output.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records and applies the logical state.
func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// Sets returns a copy of the Set history.
func (f *FakeOutput) Sets() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.History))
	copy(out, f.History)
	return out
}

// State returns the current logical state.
func (f *FakeOutput) State() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.On
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeInput is a test double that returns scripted logical values.
// When the script is exhausted the last value repeats.
type FakeInput struct {
	mu sync.Mutex

	// Values contains the scripted logical values.
	Values []bool

	// ReadErr, if set, is returned by Value.
	ReadErr error

	index  int
	Closed bool
}

// NewFakeInput creates a FakeInput with the given scripted values.
func NewFakeInput(values ...bool) *FakeInput {
	return &FakeInput{Values: values}
}

// Value returns the next scripted value.
func (f *FakeInput) Value() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	if len(f.Values) == 0 {
		return false, errors.New("no values configured")
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// SetValue replaces the script with a single steady value.
func (f *FakeInput) SetValue(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Values = []bool{on}
	f.index = 0
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
