package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader is the HTTP header name for request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey = "request_id"
	// ReplayedHeader marks a response served from the idempotency store
	ReplayedHeader = "X-Idempotent-Replay"
)

type requestIDKey struct{}

// RequestIDStore keeps responses of processed write requests so a retried
// request (same X-Request-ID) gets the original answer instead of running twice
type RequestIDStore interface {
	Store(ctx context.Context, requestID string, response CachedResponse, ttl time.Duration) error
	// Get returns ErrRequestIDNotFound for unknown or expired ids
	Get(ctx context.Context, requestID string) (CachedResponse, error)
}

// CachedResponse is a stored write response
type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// InMemoryRequestIDStore is an in-memory implementation of RequestIDStore
type InMemoryRequestIDStore struct {
	mu      sync.Mutex
	store   map[string]requestIDEntry
	cleanup *time.Ticker
	done    chan struct{}
	now     func() time.Time
}

type requestIDEntry struct {
	response  CachedResponse
	expiresAt time.Time
}

// NewInMemoryRequestIDStore creates a store that evicts expired entries every minute
func NewInMemoryRequestIDStore() *InMemoryRequestIDStore {
	store := &InMemoryRequestIDStore{
		store:   make(map[string]requestIDEntry),
		cleanup: time.NewTicker(1 * time.Minute),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go store.cleanupExpired()
	return store
}

func (s *InMemoryRequestIDStore) Store(ctx context.Context, requestID string, response CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store[requestID] = requestIDEntry{
		response:  response,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemoryRequestIDStore) Get(ctx context.Context, requestID string) (CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.store[requestID]
	if !exists {
		return CachedResponse{}, ErrRequestIDNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.store, requestID)
		return CachedResponse{}, ErrRequestIDNotFound
	}
	return entry.response, nil
}

// Len reports how many responses are held, expired ones included until the next sweep
func (s *InMemoryRequestIDStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

// Close stops the cleanup goroutine
func (s *InMemoryRequestIDStore) Close() {
	s.cleanup.Stop()
	close(s.done)
}

func (s *InMemoryRequestIDStore) cleanupExpired() {
	for {
		select {
		case <-s.done:
			return
		case <-s.cleanup.C:
			s.evictExpired()
		}
	}
}

func (s *InMemoryRequestIDStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, entry := range s.store {
		if now.After(entry.expiresAt) {
			delete(s.store, id)
		}
	}
}

var (
	ErrRequestIDNotFound = &RequestIDError{Message: "request ID not found"}
)

type RequestIDError struct {
	Message string
}

func (e *RequestIDError) Error() string {
	return e.Message
}

// RequestIDMiddleware extracts or generates X-Request-ID header
func RequestIDMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			logger.Debug("Generated new request ID",
				zap.String("request_id", requestID),
				zap.String("path", c.Request.URL.Path),
			)
		}

		c.Set(RequestIDContextKey, requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID from the Gin context
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDContextKey)
}

// RequestIDFromContext retrieves the request ID from a request context
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func isWrite(method string) bool {
	return method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions
}

// IdempotencyMiddleware replays the stored response when a write request
// arrives again with an X-Request-ID the client supplied earlier. Only client
// supplied ids count, generated ones are unique by construction.
func IdempotencyMiddleware(store RequestIDStore, logger *zap.Logger, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !isWrite(c.Request.Method) || requestID == "" {
			c.Next()
			return
		}
		key := c.Request.Method + " " + c.FullPath() + " " + requestID

		cached, err := store.Get(c.Request.Context(), key)
		if err == nil {
			logger.Info("Duplicate request detected, returning cached response",
				zap.String("request_id", requestID),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
			c.Header(ReplayedHeader, "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		}
		if err != ErrRequestIDNotFound {
			// fail open
			logger.Warn("Error reading idempotency store", zap.String("request_id", requestID), zap.Error(err))
		}

		writer := &responseWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 || len(writer.body) == 0 {
			return
		}
		if err := store.Store(c.Request.Context(), key, CachedResponse{Status: status, Body: writer.body}, ttl); err != nil {
			logger.Warn("Failed to store response for idempotency",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
	}
}

// responseWriter captures the response body
type responseWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}
