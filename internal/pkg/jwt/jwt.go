package jwt

import (
	"sync"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	ClaimUserID       = "user_id"
	ClaimEmail        = "email"
	ClaimEmployeeID   = "employee_id"
	ClaimDepartmentID = "department_id"
	ClaimRole         = "role"
	ClaimType         = "type"

	TokenTypeAccess = "access"
)

type Service interface {
	GenerateAccessToken(actor user.Actor) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
	RevokeToken(token string)
	IsTokenRevoked(token string) bool
}

// JWTService verifies tokens issued by the portal's auth service. Minting is
// kept for service-to-service calls and tests.
type JWTService struct {
	secretKey                 string
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
	revokedTokens             map[string]int64
	mu                        sync.RWMutex
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		secretKey:                 secretKey,
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		revokedTokens:             make(map[string]int64),
	}
}

func (j *JWTService) GenerateAccessToken(actor user.Actor) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		ClaimUserID:       actor.UserID,
		ClaimEmail:        actor.Email,
		ClaimEmployeeID:   returnValueOrNil(actor.EmployeeID),
		ClaimDepartmentID: returnValueOrNil(actor.DepartmentID),
		ClaimRole:         string(actor.Role),
		ClaimType:         TokenTypeAccess,
		"exp":             expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

func (j *JWTService) RevokeToken(token string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.revokedTokens[token] = time.Now().Unix()
}

func (j *JWTService) IsTokenRevoked(token string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, revoked := j.revokedTokens[token]
	return revoked
}

func returnValueOrNil(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// ActorFromClaims builds the caller identity from verified access token claims.
func ActorFromClaims(claims map[string]interface{}) user.Actor {
	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	return user.Actor{
		UserID:       str(ClaimUserID),
		EmployeeID:   str(ClaimEmployeeID),
		Email:        str(ClaimEmail),
		Role:         user.ParseRole(str(ClaimRole)),
		DepartmentID: str(ClaimDepartmentID),
	}
}
