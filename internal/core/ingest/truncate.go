package ingest

// TruncationMarker is appended whenever document text is cut at the prompt
// budget, signaling loss of trailing content.
const TruncationMarker = "\n\n...[truncated]"

// DefaultMaxChars bounds how much document text is interpolated into a
// prompt. DefaultPreviewChars bounds what is echoed back to the UI after an
// upload.
const (
	DefaultMaxChars     = 30000
	DefaultPreviewChars = 5000
)

// Truncate returns text unchanged when it fits within max bytes, otherwise
// the max-byte prefix with TruncationMarker appended. This is a hard cutoff,
// not aware of token boundaries or semantic structure.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + TruncationMarker
}
