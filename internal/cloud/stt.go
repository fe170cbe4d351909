package cloud

import (
	"context"
	"net/http"
	"strconv"
)

// STTAPI wraps the speech-to-text endpoint.
type STTAPI struct {
	client *Client
}

// NewSTTAPI returns the speech-to-text endpoint of b.
func NewSTTAPI(b *Backend) *STTAPI {
	return &STTAPI{client: b.Client("stt")}
}

// Transcribe sends FLAC audio for transcription in language (a BCP-47 tag
// such as "en-US") and returns the backend's result as parsed JSON. limit
// caps the number of alternatives returned.
func (s *STTAPI) Transcribe(ctx context.Context, audio []byte, language string, limit int) (any, error) {
	return s.client.Request(ctx, RequestSpec{
		Method:  http.MethodPost,
		Headers: map[string]string{headerContentType: "audio/x-flac"},
		Query: map[string]string{
			"lang":  language,
			"limit": strconv.Itoa(limit),
		},
		Data: audio,
	})
}
