package value

// Version constants for persisted documents and the wire format.
const (
	// DefaultStoreVersion is the store version identifier written to durable
	// storage when no other version is configured.
	DefaultStoreVersion = "1.0.0"

	// WireVersion is the sync message schema version.
	WireVersion = "1"
)
