package transfer

import "github.com/golang-jwt/jwt/v5"

type PostCreation struct {
	Content        string
	Title          string
	ScheduledTime  string
	Timezone       string
	TargetAccounts string
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
