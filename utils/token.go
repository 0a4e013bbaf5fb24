package utils

import (
	"fmt"
	"os"

	"github.com/dgrijalva/jwt-go"
)

// IdentityClaims is the claim set issued by the external identity service.
// The portal only trusts tokens signed with the shared API_SECRET.
type IdentityClaims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "FxCard-Secret"
	}
	return secret
}

func JwtValidate(token string) (*IdentityClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &IdentityClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid identity token")
	}
	return claims, nil
}
