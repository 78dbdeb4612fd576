package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// jsonRecovery recovers from panics and answers with a JSON error body so
// API clients can always parse the response.
func jsonRecovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic while handling request",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(requestIDHeader))
				c.Header("Content-Type", "application/json; charset=utf-8")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}

// canonicalErrors rewrites every response with status >= 400 into the
// {"error": "<message>"} shape, whatever the handler or middleware wrote.
func canonicalErrors(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		origWriter := c.Writer
		bcw := &bodyCaptureWriter{ResponseWriter: origWriter}
		c.Writer = bcw

		c.Next()

		c.Writer = origWriter
		status := bcw.Status()
		buf := bcw.body.Bytes()

		if status >= http.StatusBadRequest {
			msg := errorMessage(buf, bcw.Header().Get("Content-Type"))
			if msg == "" {
				if len(c.Errors) > 0 {
					msg = c.Errors.Last().Error()
				} else {
					msg = http.StatusText(status)
				}
			}

			origWriter.Header().Set("Content-Type", "application/json; charset=utf-8")
			origWriter.WriteHeader(status)
			out, _ := json.Marshal(gin.H{"error": msg})
			if _, err := origWriter.Write(out); err != nil {
				logger.Error("Failed to write error response", "error", err)
			}
			return
		}

		if len(buf) > 0 {
			origWriter.WriteHeader(status)
			if _, err := origWriter.Write(buf); err != nil {
				logger.Error("Failed to write response body", "error", err)
			}
		}
	}
}

// errorMessage extracts a message from an error body: the "error" or
// "message" field of a JSON object, else the trimmed text.
func errorMessage(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}
	if strings.Contains(contentType, "application/json") {
		var parsed map[string]interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			if e, ok := parsed["error"].(string); ok && e != "" {
				return e
			}
			if m, ok := parsed["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	return string(bytes.TrimSpace(body))
}

// bodyCaptureWriter buffers response body writes so middleware can inspect
// and optionally rewrite the output before sending to the client.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

// Write buffers the bytes without touching the underlying writer
func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

// WriteString buffers the string without touching the underlying writer
func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// requestID propagates a caller supplied X-Request-ID or mints a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *slog.Logger, trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client", ClientIP(c.Request, trustProxy),
			"status", status,
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDHeader))
	}
}

// bodyLimit caps the request body; handlers see *http.MaxBytesError on overflow
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
