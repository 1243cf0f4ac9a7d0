package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	oauthStateBytes           = 24
	errGenerateRandomBytesFmt = "failed to generate random bytes: %w"
	errByteLengthPositiveFmt  = "byteLength must be positive"
)

func GenerateHex(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf(errByteLengthPositiveFmt)
	}

	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf(errGenerateRandomBytesFmt, err)
	}

	return hex.EncodeToString(bytes), nil
}

// GenerateOAuthState returns an unguessable value for the OAuth2 state parameter.
func GenerateOAuthState() (string, error) {
	return GenerateHex(oauthStateBytes)
}
