package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookClaims attest that a webhook delivery originated from this service
// for a specific redemption.
type WebhookClaims struct {
	LinkID      string `json:"link_id"`
	PaymentHash string `json:"payment_hash"`
	jwt.RegisteredClaims
}

// SignWebhookToken creates the bearer token attached to webhook deliveries.
// ttl bounds how long a receiver should accept the delivery as fresh.
func SignWebhookToken(secret, linkID, paymentHash string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	claims := WebhookClaims{
		LinkID:      linkID,
		PaymentHash: paymentHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "lnurlw",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseWebhookToken(secret, tokenStr string) (*WebhookClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &WebhookClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*WebhookClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
