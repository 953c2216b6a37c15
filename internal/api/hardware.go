package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Signature"
	timestampHeader = "X-Timestamp"
	maxHardwareBody = 64 << 10
)

// ReplayGuard remembers signatures that were already accepted.
type ReplayGuard interface {
	// Seen records signature and reports whether it had been recorded before.
	Seen(ctx context.Context, signature string, ttl time.Duration) (bool, error)
	// Forget drops a recorded signature so the sender may retry it.
	Forget(ctx context.Context, signature string) error
}

type RedisReplayGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisReplayGuard(rdb *redis.Client, prefix string) *RedisReplayGuard {
	return &RedisReplayGuard{rdb: rdb, prefix: prefix}
}

func (g *RedisReplayGuard) Seen(ctx context.Context, signature string, ttl time.Duration) (bool, error) {
	stored, err := g.rdb.SetNX(ctx, g.prefix+":"+signature, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record signature: %w", err)
	}
	return !stored, nil
}

func (g *RedisReplayGuard) Forget(ctx context.Context, signature string) error {
	if err := g.rdb.Del(ctx, g.prefix+":"+signature).Err(); err != nil {
		return fmt.Errorf("failed to release signature: %w", err)
	}
	return nil
}

// MemoryReplayGuard is the single-process fallback when Redis is not configured.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{expires: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryReplayGuard) Seen(_ context.Context, signature string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for sig, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, sig)
		}
	}
	if _, ok := g.expires[signature]; ok {
		return true, nil
	}
	g.expires[signature] = now.Add(ttl)
	return false, nil
}

func (g *MemoryReplayGuard) Forget(_ context.Context, signature string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, signature)
	return nil
}

// Sign computes the hex HMAC-SHA256 stations send over body followed by timestamp.
func Sign(secret string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// hardwareAuth verifies the station signature, rejects stale timestamps and
// replays, then restores the body for the handler. A signature is only kept
// once the handler succeeds; failed deliveries roll back and may be retried.
func (s *Server) hardwareAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.Hardware.HmacSecret
		if secret == "" {
			abortWithStatus(c, http.StatusServiceUnavailable, store.KindResourceUnavailable, "hardware ingestion is not configured")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHardwareBody))
		if err != nil {
			abortWithStatus(c, http.StatusBadRequest, store.KindValidation, "failed to read body")
			return
		}

		timestamp := c.GetHeader(timestampHeader)
		sent, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "missing or invalid timestamp")
			return
		}
		window := s.cfg.Hardware.FreshnessWindow
		skew := s.now().Sub(time.Unix(sent, 0))
		if skew > window || skew < -window {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "stale timestamp")
			return
		}

		signature := c.GetHeader(signatureHeader)
		expected := Sign(secret, body, timestamp)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			zap.L().Warn("Rejected hardware request with bad signature",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "invalid signature")
			return
		}

		replayed, err := s.replay.Seen(c.Request.Context(), signature, 2*window)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if replayed {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "replayed request")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()

		if status := c.Writer.Status(); status >= http.StatusMultipleChoices {
			if err := s.replay.Forget(context.WithoutCancel(c.Request.Context()), signature); err != nil {
				zap.L().Warn("Failed to release hardware signature",
					zap.String("path", c.Request.URL.Path),
					zap.Int("status", status),
					zap.Error(err))
			}
		}
	}
}

func (s *Server) handleReturn(c *gin.Context) {
	var msg models.ReturnEventMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		abortWithError(c, store.Invalid("malformed return event: %v", err))
		return
	}

	result, err := s.reconciler.ProcessReturn(c.Request.Context(), msg.Event())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleResync(c *gin.Context) {
	var snapshot models.StationSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		abortWithError(c, store.Invalid("malformed snapshot: %v", err))
		return
	}

	result, err := s.reconciler.Resync(c.Request.Context(), snapshot)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
