// Package token generates the credentials of the public access protocol:
// bearer access tokens embedded in links, six-digit one-time codes, and
// post-verification session tokens. All values come from crypto/rand; an
// entropy source failure is unrecoverable and panics rather than degrading
// to guessable output.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const accessTokenBytes = 32

// GenerateAccessToken returns an unguessable URL-safe bearer value with 256
// bits of entropy. RawURLEncoding keeps it free of '+', '/' and padding so
// it can sit in a link path untouched.
func GenerateAccessToken() string {
	return randomToken()
}

// GenerateSessionToken returns a short-lived authorization token with the
// same construction as an access token.
func GenerateSessionToken() string {
	return randomToken()
}

func randomToken() string {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("entropy source failure: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

var oneTimeCodeSpace = big.NewInt(1_000_000)

// GenerateOneTimeCode returns a zero-padded six-digit code uniformly
// distributed over 000000-999999. crypto/rand.Int performs rejection
// sampling, so no value is more likely than another.
func GenerateOneTimeCode() string {
	n, err := rand.Int(rand.Reader, oneTimeCodeSpace)
	if err != nil {
		panic(fmt.Sprintf("entropy source failure: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
