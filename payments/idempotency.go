package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"scatch/models"
	"scatch/utils"

	"github.com/julienschmidt/httprouter"
)

const idempotencyTTL = 24 * time.Hour

type IdempotencyStore interface {
	Reserve(ctx context.Context, rec models.IdempotencyRecord) error
	Find(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	SaveResponse(ctx context.Context, key string, resp models.StoredResponse) error
	Release(ctx context.Context, key string) error
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter wraps http.ResponseWriter to capture status and body.
type CaptureResponseWriter struct {
	w           http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{w: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) Header() http.Header {
	return c.w.Header()
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.w.WriteHeader(statusCode)
		c.wroteHeader = true
	}
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.w.Write(b)
}

// Idempotency replays the first response produced under an Idempotency-Key.
// Without the header the request passes through. The key is reserved before the
// handler runs; a reuse with a different request gets 409, a reuse while the first
// request is still running gets 409, a reuse after it finished gets its stored response.
// Server errors release the key so the client may retry.
func Idempotency(store IdempotencyStore, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next(w, r, ps)
			return
		}

		userID := utils.GetUserIDFromRequest(r)

		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		reqHash := computeRequestHash(r, bodyBytes, userID)
		now := time.Now()
		rec := models.IdempotencyRecord{
			Key:         key,
			Method:      r.Method,
			Path:        r.URL.Path,
			UserID:      userID,
			RequestHash: reqHash,
			CreatedAt:   now,
			ExpiresAt:   now.Add(idempotencyTTL),
		}

		ctx := r.Context()
		err = store.Reserve(ctx, rec)
		if err == nil {
			crw := NewCaptureResponseWriter(w)
			next(crw, r, ps)

			// the stored response must outlive a client that hung up
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if crw.statusCode >= http.StatusInternalServerError {
				if err := store.Release(saveCtx, key); err != nil {
					log.Println("Idempotency release error:", err)
				}
				return
			}
			resp := models.StoredResponse{
				Status:      crw.statusCode,
				ContentType: w.Header().Get("Content-Type"),
				Body:        crw.buf.Bytes(),
			}
			if err := store.SaveResponse(saveCtx, key, resp); err != nil {
				log.Println("Idempotency save error:", err)
			}
			return
		}

		if !errors.Is(err, models.ErrDuplicate) {
			log.Println("Idempotency reserve error:", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Idempotency lookup error")
			return
		}

		existing, err := store.Find(ctx, key)
		if err != nil {
			log.Println("Idempotency lookup error:", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Idempotency lookup error")
			return
		}

		if existing.RequestHash != reqHash {
			utils.RespondWithError(w, http.StatusConflict, "Idempotency-Key reused with a different request")
			return
		}
		if existing.Response == nil {
			utils.RespondWithError(w, http.StatusConflict, "A request with this Idempotency-Key is in progress")
			return
		}

		if existing.Response.ContentType != "" {
			w.Header().Set("Content-Type", existing.Response.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.Response.Status)
		w.Write(existing.Response.Body)
	}
}
