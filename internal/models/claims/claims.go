package claims

import "github.com/golang-jwt/jwt/v4"

// Auth is the payload of tokens issued by the authentication service.
type Auth struct {
	jwt.RegisteredClaims
	UserID int  `json:"user_id"`
	Admin  bool `json:"admin"`
}
