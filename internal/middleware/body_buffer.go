package middleware

import (
	"bytes"
	"io"
	"net/http"

	"tag-gateway/internal/logger"
)

// MaxBodyBytes bounds how much of a request body is buffered. A tag
// query is at most a few hundred bytes; anything past this is dropped.
const MaxBodyBytes = 64 << 10

// BodyBufferMiddleware reads the request body into a buffer and restores it
// for downstream handlers. The buffered bytes are also stored in the
// request context. Unlike a strict JSON gateway it does not validate the
// body: malformed JSON is the tag handler's concern.
func BodyBufferMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only buffer POST requests with a body
		if r.Method != http.MethodPost || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		r.Body.Close()
		if err != nil {
			// An unreadable body is handled as an empty one.
			bodyBytes = []byte{}
		}

		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		r = r.WithContext(WithBody(r.Context(), bodyBytes))

		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware assigns every request an ID, echoes it in the
// X-Request-ID response header and stores it in the request context.
// An incoming X-Request-ID is reused.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = logger.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), requestID)))
	})
}

// GetBodyBytes retrieves the buffered body bytes from the request.
// Returns nil if the body was not buffered.
func GetBodyBytes(r *http.Request) []byte {
	return BodyFromContext(r.Context())
}
