// Package gpio provides GPIO input and output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Input reads a single GPIO input line.
type Input interface {
	// Read returns the logical level of the line.
	// The button is wired active-low: raw 0 = logical pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single GPIO output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close drives the line low and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRelay  = 26
	DefaultPinButton = 4
	DefaultPinBuzzer = 21
)
