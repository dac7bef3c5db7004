package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultAssertionTTL bounds how old a sign-in assertion may be.
const DefaultAssertionTTL = 5 * time.Minute

// Identity is what the sign-in frontend vouches for.
type Identity struct {
	Email string
	Name  string
}

// ValidateAssertion checks a sign-in assertion produced by the frontend after
// OAuth. The assertion is a query string with email, optional name, auth_date
// and hash, where hash = hex(HMAC-SHA256(HMAC-SHA256("IdentityAssertion", secret), data)),
// data being the other fields as sorted key=value lines.
func ValidateAssertion(assertion, secret string, maxAge time.Duration, now time.Time) (*Identity, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity secret is not configured")
	}
	if maxAge <= 0 {
		maxAge = DefaultAssertionTTL
	}

	vals, err := url.ParseQuery(assertion)
	if err != nil {
		return nil, fmt.Errorf("invalid assertion format: %w", err)
	}

	receivedHash := vals.Get("hash")
	if receivedHash == "" {
		return nil, fmt.Errorf("hash is missing from assertion")
	}

	authDateStr := vals.Get("auth_date")
	if authDateStr == "" {
		return nil, fmt.Errorf("auth_date is missing from assertion")
	}
	authDateUnix, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth_date is not a valid unix timestamp")
	}
	authDate := time.Unix(authDateUnix, 0)
	if now.Sub(authDate) > maxAge {
		return nil, fmt.Errorf("assertion expired")
	}
	if authDate.After(now.Add(time.Minute)) {
		return nil, fmt.Errorf("auth_date is in the future")
	}

	expected := SignAssertion(vals, secret)
	if !hmac.Equal([]byte(expected), []byte(receivedHash)) {
		return nil, fmt.Errorf("invalid hash: data integrity check failed")
	}

	email := strings.ToLower(strings.TrimSpace(vals.Get("email")))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email")
	}

	return &Identity{Email: email, Name: strings.TrimSpace(vals.Get("name"))}, nil
}

// SignAssertion computes the hash field for vals. The hash key itself is ignored.
func SignAssertion(vals url.Values, secret string) string {
	var pairs []string
	for key, values := range vals {
		if key == "hash" {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, fmt.Sprintf("%s=%s", key, v))
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmacSHA256([]byte("IdentityAssertion"), []byte(secret))
	return hex.EncodeToString(hmacSHA256(secretKey, []byte(dataCheckString)))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
