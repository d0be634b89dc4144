package minimarket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
	ErrTokenUsed    = errors.New("token is already used")
	ErrTokenScope   = errors.New("token is for another conversation")
)

// TokenService mints short-lived single-use tokens scoped to one
// conversation. Format: base64url(conversationID:nonce:expiresAt) "." hex(hmac).
type TokenService struct {
	secret []byte
	ttl    time.Duration

	mu   sync.Mutex
	used map[string]bool
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		used:   make(map[string]bool),
	}
}

func (t *TokenService) Issue(conversationID int64) string {
	payload := fmt.Sprintf("%d:%s:%d", conversationID, uuid.NewString(), time.Now().Add(t.ttl).Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + t.sign(payload)
}

// Redeem validates the token against the conversation and consumes it.
func (t *TokenService) Redeem(token string, conversationID int64) error {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return ErrTokenInvalid
	}
	payload := string(raw)
	if !hmac.Equal([]byte(t.sign(payload)), []byte(sig)) {
		return ErrTokenInvalid
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return ErrTokenInvalid
	}
	tokenConv, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	if tokenConv != conversationID {
		return ErrTokenScope
	}
	expiresAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	if time.Now().Unix() > expiresAt {
		return ErrTokenExpired
	}

	nonce := parts[1]
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.used[nonce] {
		return ErrTokenUsed
	}
	t.used[nonce] = true
	return nil
}

func (t *TokenService) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
