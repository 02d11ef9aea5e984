// Package sensor reads raw machine-current signals. The analog
// implementation samples an ADS1115 ADC over I2C (current transformers on
// the machine feeds); the digital implementation reads current-switch
// contacts on GPIO lines. The fake implementation returns scripted samples.
package sensor

// Reading is one machine's raw sample. Value is volts for analog sources
// and 0/1 for digital contacts.
type Reading struct {
	Machine string
	Value   float64
}

// Reader samples every configured machine once per call.
type Reader interface {
	Read() ([]Reading, error)

	// Close releases sensor resources.
	Close() error
}

// Composite reads several sources as one. Machines split across the ADC and
// GPIO contacts look like a single sensor to the watcher.
type Composite []Reader

// Read concatenates the readings of every source. The first error wins.
func (c Composite) Read() ([]Reading, error) {
	var out []Reading
	for _, r := range c {
		rs, err := r.Read()
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// Close closes every source, returning the first error.
func (c Composite) Close() error {
	var first error
	for _, r := range c {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
