// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted request body for image uploads (16MB)
	MaxUploadSize = 16 << 20

	// MaxImageSize is the maximum dimension (width or height) passed to face extraction
	MaxImageSize = 1920
)

// AllowedImageExtensions lists the accepted upload extensions, lowercase and without the dot.
var AllowedImageExtensions = []string{"png", "jpg", "jpeg"}

// Listing constants
const (
	// DefaultPickupLogLimit is the number of pickup logs returned when no limit is given
	DefaultPickupLogLimit = 100

	// MaxPickupLogLimit caps the limit query parameter
	MaxPickupLogLimit = 10000
)
