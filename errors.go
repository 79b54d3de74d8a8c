package hearth

import (
	"goflare.io/hearth/internal/backend"
	"goflare.io/hearth/internal/keys"
	"goflare.io/hearth/internal/store"
	"goflare.io/hearth/pkg/serialization"
)

// Error taxonomy. Read paths degrade to misses instead of returning these;
// caller-initiated writes and invalidations surface them.
var (
	// ErrConnection indicates the backing store is unreachable.
	ErrConnection = backend.ErrConnection
	// ErrTimeout indicates a backing-store call exceeded its deadline.
	ErrTimeout = backend.ErrTimeout
	// ErrAuth indicates the backing store rejected our credentials.
	ErrAuth = backend.ErrAuth
	// ErrEncode indicates a value could not be serialized.
	ErrEncode = serialization.ErrEncode
	// ErrDecode indicates stored bytes could not be deserialized.
	ErrDecode = serialization.ErrDecode
	// ErrInvalidKeyPart indicates a key part violates the separator
	// invariant. Programmer error; fails loudly rather than colliding.
	ErrInvalidKeyPart = keys.ErrInvalidKeyPart
	// ErrClosed is returned by every operation after Close.
	ErrClosed = store.ErrClosed
)
