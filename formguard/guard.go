// Package formguard validates the video URL field of the clip submission form.
//
// [IsYouTubeURL] is the pure validation rule. [Guard] wires it to a form
// submission: invalid values cancel the submission and alert the user, valid
// ones let the submission through untouched.
package formguard

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
)

const (
	// DefaultField is the form field holding the video URL.
	DefaultField = "youtube_url"

	// DefaultMessage is shown to the user when the URL is rejected.
	DefaultMessage = "Please enter a valid YouTube URL"

	// maxFormBody caps how much of a submission is buffered for inspection.
	maxFormBody = 10 << 20 // 10MB
)

// The path class excludes every line terminator, not just \n.
var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/[^\n\r\x{2028}\x{2029}]+$`)

// IsYouTubeURL reports whether s looks like a YouTube video link: optional
// http/https scheme, optional www., host youtube.com or youtu.be, and a
// non-empty single-line path.
func IsYouTubeURL(s string) bool {
	return youtubeURLPattern.MatchString(s)
}

// AlertFunc presents a message to the user.
type AlertFunc func(message string)

// Guard intercepts form submissions and rejects invalid video URLs.
type Guard struct {
	// Field is the form field to validate. Defaults to [DefaultField].
	Field string

	// Message is the alert text. Defaults to [DefaultMessage].
	Message string

	// Alert is called with Message whenever a submission is rejected.
	// May be nil.
	Alert AlertFunc

	// Logger receives rejection events. Defaults to slog.Default().
	Logger *slog.Logger
}

func (g Guard) field() string {
	if g.Field == "" {
		return DefaultField
	}
	return g.Field
}

func (g Guard) message() string {
	if g.Message == "" {
		return DefaultMessage
	}
	return g.Message
}

func (g Guard) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// Check validates a submitted value. It returns true if the submission may
// proceed; otherwise it raises the alert and returns false.
func (g Guard) Check(value string) bool {
	if IsYouTubeURL(value) {
		return true
	}
	if g.Alert != nil {
		g.Alert(g.message())
	}
	return false
}

// rejection is the JSON body written for a blocked submission.
type rejection struct {
	Error rejectionBody `json:"error"`
}

type rejectionBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// Middleware guards form submissions on their way to next.
//
// Only POST requests carrying the field are inspected; a form without it
// passes through. The request body is buffered and restored, so next
// receives exactly the bytes the client sent. Rejected
// submissions get 422 Unprocessable Entity with a JSON body carrying the
// alert message and never reach next.
func (g Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBody+1))
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, "failed to read form", http.StatusBadRequest)
			return
		}
		if len(body) > maxFormBody {
			http.Error(w, "form too large", http.StatusRequestEntityTooLarge)
			return
		}

		value, present := formValue(r, body, g.field())

		// restore the body for next, whatever the outcome of parsing
		r.Body = io.NopCloser(bytes.NewReader(body))

		// forms without the field are not video submissions
		if !present || g.Check(value) {
			next.ServeHTTP(w, r)
			return
		}

		g.logger().Info("submission rejected",
			"field", g.field(),
			"path", r.URL.Path,
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(rejection{Error: rejectionBody{
			Code:    "INVALID_URL",
			Message: g.message(),
			Field:   g.field(),
		}})
	})
}

// formValue parses a copy of the request to read one field. present is
// false only when the body parsed cleanly and does not carry the field.
// Unparseable bodies yield ("", true), which fails validation.
func formValue(r *http.Request, body []byte, field string) (value string, present bool) {
	clone := r.Clone(r.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.Form = nil
	clone.PostForm = nil
	clone.MultipartForm = nil

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := clone.ParseMultipartForm(maxFormBody); err != nil {
			return "", true
		}
		defer func() { _ = clone.MultipartForm.RemoveAll() }()
	} else if err := clone.ParseForm(); err != nil {
		return "", true
	}

	values, ok := clone.PostForm[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
