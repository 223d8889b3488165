// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Pagination constants
const (
	// DefaultHandlerPageSize is the page size for paginated case listings
	DefaultHandlerPageSize = 100

	// MaxHandlerPageSize caps the limit query parameter
	MaxHandlerPageSize = 500
)

// Upload constants
const (
	// MaxUploadSize is the maximum reference photo size in bytes (16MB)
	MaxUploadSize = 16 << 20

	// MaxScanFrameSize bounds the JSON body of a scan request (base64 frame included)
	MaxScanFrameSize = 24 << 20

	// MaxChatRequestSize bounds the JSON body of a chat request
	MaxChatRequestSize = 64 << 10
)

// AllowedImageExtensions lists the reference photo extensions accepted at registration.
var AllowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the embedding backend
	MaxImageSize = 1280

	// DefaultConcurrency is the default number of parallel re-embedding workers
	DefaultConcurrency = 4

	// EventChannelBuffer is the per-listener buffer for job progress events
	EventChannelBuffer = 100
)

// Case status values
const (
	StatusPending = "Pending"
	StatusFound   = "Found"
	StatusClosed  = "Closed"
)

// Scan response messages
const (
	// MessageNoFace is returned when no face could be found in a scan frame
	MessageNoFace = "No face detected. Ensure good lighting and face the camera."

	// MessageNoCases is returned when no registered case has an embedding yet
	MessageNoCases = "No registered cases in the database yet."

	// MessageNoResults is returned when every candidate was filtered out
	MessageNoResults = "No database records found."

	// MessageBadFrame is returned when the submitted frame cannot be decoded
	MessageBadFrame = "Could not decode image frame."

	// MessageScanError is returned for any other recognition failure
	MessageScanError = "Recognition error, please try again."
)

// Chat response messages
const (
	// MessageChatUnavailable is returned when no chat provider is configured
	MessageChatUnavailable = "The assistant is not configured. Set OPENAI_TOKEN or GEMINI_API_KEY to enable it."

	// MessageChatFailed is returned when the chat provider fails
	MessageChatFailed = "The assistant is unavailable right now. Please try again later."
)
