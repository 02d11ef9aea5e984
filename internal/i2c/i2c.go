// Package i2c provides raw I2C bus access with hardware abstraction.
// The real implementation talks to the Linux /dev/i2c-N character device.
// The fake implementation allows testing without hardware.
package i2c

// Bus performs transfers on one I2C bus. Byte operations address raw
// byte-wide devices (PCF8574 expanders); word-register operations address
// 16-bit register devices (ADS1115 ADC). Implementations must be safe for
// concurrent use — multiple expander devices share one bus.
type Bus interface {
	// ReadByte reads the single data byte of a byte-wide device.
	ReadByte(addr uint16) (byte, error)

	// WriteByte writes the single data byte of a byte-wide device.
	WriteByte(addr uint16, v byte) error

	// ReadWordReg reads a big-endian 16-bit register.
	ReadWordReg(addr uint16, reg byte) (uint16, error)

	// WriteWordReg writes a big-endian 16-bit register.
	WriteWordReg(addr uint16, reg byte, v uint16) error

	// Close releases the bus.
	Close() error
}

// Default 7-bit addresses for the workshop wiring.
const (
	DefaultLEDAddr   = 0x20 // status LED expander
	DefaultRelayAddr = 0x21 // gate relay expander
	DefaultADCAddr   = 0x48 // ADS1115 current sensing
)
