// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize is the maximum size for JSON request bodies.
	// Circle and invite payloads are small, so 64 KB leaves plenty of room.
	MaxJSONBodySize = 64 << 10
)
