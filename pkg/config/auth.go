package config

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/fixengine/pkg/message"
)

// tagCredentialToken is a user-defined tag (the FIX user-defined range
// starts at 5000) carrying a bearer token on the initiator's Logon message,
// used only when Auth.RequireCredentials is enabled.
const tagCredentialToken = 9001

// validateJWT checks the bearer token carried in tagCredentialToken against
// signingKey.
func validateJWT(msg *message.Message, signingKey string) error {
	token := msg.GetString(tagCredentialToken)
	if token == "" {
		return fmt.Errorf("missing credential token (tag %d)", tagCredentialToken)
	}

	_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return fmt.Errorf("credential token invalid: %w", err)
	}
	return nil
}
