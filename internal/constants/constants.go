// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Storage constants
const (
	// DefaultMaxFilesPerCategory is the retention cap applied after every store
	DefaultMaxFilesPerCategory = 1000

	// MaxSanitizedNameLength keeps artifact names short enough for Telegram
	// callback data (64 bytes including the action prefix)
	MaxSanitizedNameLength = 28

	// MaxCallbackDataLength is the Telegram limit for inline button payloads
	MaxCallbackDataLength = 64
)

// Upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (16MB)
	MaxUploadSize = 16 << 20

	// UploadFieldName is the multipart field carrying the image
	UploadFieldName = "image"
)

// Face matching constants
const (
	// DefaultDistanceThreshold is the default maximum cosine distance for face matching
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.5

	// DefaultMinDetScore drops weak detections before they reach the gallery
	DefaultMinDetScore = 0.5

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1280

	// DefaultGallerySearchLimit is the number of neighbours fetched per detected face
	DefaultGallerySearchLimit = 5

	// MaxFaceNameLength bounds names registered through the API or chat
	MaxFaceNameLength = 100
)

// Alert worker constants
const (
	// DefaultPollIntervalSeconds is the idle wait between queue checks
	DefaultPollIntervalSeconds = 1

	// DefaultErrorBackoffSeconds is the pause after a failed worker iteration
	DefaultErrorBackoffSeconds = 5

	// DefaultPendingTTLMinutes is how long an "assign name" request waits for a reply
	DefaultPendingTTLMinutes = 10

	// TelegramLongPollSeconds is the getUpdates timeout
	TelegramLongPollSeconds = 30
)
