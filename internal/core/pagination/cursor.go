package pagination

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is a keyset position: the sort key of the last item on the previous page.
// Items are ordered by (CreatedAt DESC, ID DESC), so the next page holds everything
// strictly before this position.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Before reports whether an item with the given sort key comes after c in feed order.
func (c Cursor) Before(createdAt time.Time, id uuid.UUID) bool {
	if createdAt.Before(c.CreatedAt) {
		return true
	}
	return createdAt.Equal(c.CreatedAt) && strings.Compare(id.String(), c.ID.String()) < 0
}

// ErrInvalidCursor is returned when a cursor fails to decode or its signature doesn't match
var ErrInvalidCursor = errors.New("invalid cursor")

const (
	delimiter = "::"
	// maxCursorLength bounds decoding work on attacker-supplied input
	maxCursorLength = 512
)

// Codec encodes cursors as opaque, HMAC-SHA256 signed tokens so clients can't forge positions.
type Codec struct {
	secret []byte
}

// NewCodec creates a cursor codec signing with the given secret
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode returns the opaque token for c.
// Format before encoding: created_at::id::signature
func (c *Codec) Encode(cur Cursor) string {
	payload := cur.CreatedAt.UTC().Format(time.RFC3339Nano) + delimiter + cur.ID.String()
	signed := payload + delimiter + c.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(signed))
}

// Decode parses and verifies a token produced by Encode.
func (c *Codec) Decode(token string) (Cursor, error) {
	if token == "" || len(token) > maxCursorLength {
		return Cursor{}, ErrInvalidCursor
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	parts := strings.Split(string(decoded), delimiter)
	if len(parts) != 3 {
		return Cursor{}, ErrInvalidCursor
	}

	payload := parts[0] + delimiter + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(c.sign(payload))) {
		return Cursor{}, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ClampLimit maps a requested page size into [1, MaxLimit], using DefaultLimit for
// zero or negative requests.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
