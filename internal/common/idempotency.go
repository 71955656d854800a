package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const idemPending = "pending:"

// Idem provides an Idempotency-Key middleware backed by Redis. The first
// successful response for a key is stored and replayed to later requests that
// carry the same key and the same body. A key reused with a different body is
// rejected with 422 IDEMPOTENCY_KEY_REUSED.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	BodyHash    string `json:"body_hash"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

func hashKey(r *http.Request, key string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + " " + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Middleware replays stored responses for repeated Idempotency-Key headers.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := readBody(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		ctx := r.Context()
		key := hashKey(r, header)
		digest := bodyHash(body)
		ok, err := i.R.SetNX(ctx, key, idemPending+digest, i.TTL).Result()
		if err != nil {
			storeError(w, err)
			return
		}
		if !ok {
			i.replay(ctx, w, key, digest)
			return
		}

		rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		completed := false
		defer func() {
			if !completed {
				_ = i.R.Del(context.Background(), key).Err()
			}
		}()
		next.ServeHTTP(rec, r)
		if rec.status >= 200 && rec.status < 300 {
			payload, err := json.Marshal(storedResponse{
				BodyHash:    digest,
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err == nil && i.R.Set(context.Background(), key, payload, i.TTL).Err() == nil {
				completed = true
			}
		}
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key, digest string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "request expired, retry", nil)
			return
		}
		storeError(w, err)
		return
	}
	if pending, ok := strings.CutPrefix(string(raw), idemPending); ok {
		if pending != digest {
			keyReused(w)
			return
		}
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request in progress", nil)
		return
	}
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		storeError(w, err)
		return
	}
	if stored.BodyHash != digest {
		keyReused(w)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func keyReused(w http.ResponseWriter) {
	JSONError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key was used with a different request body", nil)
}

// readBody drains r.Body and puts an identical reader back for the next handler.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func storeError(w http.ResponseWriter, err error) {
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.status = status
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
