package model

// Writer defines a generic interface for persisting a finished result set.
type Writer interface {
	// Write persists the result set under the given version identifier.
	Write(rs *ResultSet, version string) error

	// Name returns a short identifier for logging.
	Name() string
}
