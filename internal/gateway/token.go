package gateway

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 10 * time.Minute

// accessToken mints the short-lived HS256 token the gateway expects on
// every RPC. The key id travels as the issuer; room permissions ride in
// the "video" claim.
func accessToken(apiKey, apiSecret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": apiKey,
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"video": map[string]any{
			"roomCreate": true,
			"roomList":   true,
			"roomAdmin":  true,
			"roomRecord": true,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(apiSecret))
}
