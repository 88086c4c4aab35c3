package service

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL        = time.Hour
	defaultCredentialTTL   = 5 * time.Minute
	generatedSecretLength  = 32
	credentialCacheCleanup = 10 * time.Minute
)

// Domain errors for auth flows.
var (
	ErrUnauthorized = errors.New("invalid credentials")
	ErrInvalidToken = errors.New("invalid token")
)

// Credentials is one configured username/password pair.
type Credentials struct {
	Username string
	Password string
}

// AuthConfig configures NewAuthService.
type AuthConfig struct {
	User      Credentials
	Superuser Credentials

	TokenSecret string
	TokenTTL    time.Duration
	// CredentialCacheTTL bounds how long a verified pair skips bcrypt.
	CredentialCacheTTL time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int

	Log *logger.Logger
}

// identity is a username accepted for a role together with the bcrypt hash
// of the password that goes with it.
type identity struct {
	username string
	hash     []byte
	role     models.Role
}

// AuthService checks Basic credentials against the configured accounts and
// issues/parses bearer tokens.
type AuthService struct {
	identities []identity
	secret     []byte
	tokenTTL   time.Duration
	verified   *cache.Cache
}

// NewAuthService hashes the configured credentials. Each account is also
// accepted in its md5 form: md5hex(username) with md5hex(password).
func NewAuthService(cfg AuthConfig) (*AuthService, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	s := &AuthService{
		tokenTTL: cfg.TokenTTL,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}
	credTTL := cfg.CredentialCacheTTL
	if credTTL <= 0 {
		credTTL = defaultCredentialTTL
	}
	s.verified = cache.New(credTTL, credentialCacheCleanup)

	// Superuser first so a shared username resolves to the higher role when
	// the superuser password matches.
	for _, acc := range []struct {
		creds Credentials
		role  models.Role
	}{
		{cfg.Superuser, models.RoleSuperuser},
		{cfg.User, models.RoleUser},
	} {
		if strings.TrimSpace(acc.creds.Username) == "" || acc.creds.Password == "" {
			return nil, fmt.Errorf("%s credentials are required", acc.role)
		}
		for _, pair := range [][2]string{
			{acc.creds.Username, acc.creds.Password},
			{md5Hex(acc.creds.Username), md5Hex(acc.creds.Password)},
		} {
			hash, err := bcrypt.GenerateFromPassword([]byte(pair[1]), cost)
			if err != nil {
				return nil, fmt.Errorf("hash %s password: %w", acc.role, err)
			}
			s.identities = append(s.identities, identity{username: pair[0], hash: hash, role: acc.role})
		}
	}

	if cfg.TokenSecret != "" {
		s.secret = []byte(cfg.TokenSecret)
	} else {
		b := make([]byte, generatedSecretLength)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		s.secret = b
		log.Warnw("token_secret_generated", "detail", "auth.token_secret not set; tokens will not survive a restart")
	}
	return s, nil
}

// Authenticate resolves a username/password pair to a principal.
func (s *AuthService) Authenticate(username, password string) (models.Principal, error) {
	key := credentialKey(username, password)
	if v, ok := s.verified.Get(key); ok {
		return v.(models.Principal), nil
	}

	for _, id := range s.identities {
		if subtle.ConstantTimeCompare([]byte(id.username), []byte(username)) != 1 {
			continue
		}
		if bcrypt.CompareHashAndPassword(id.hash, []byte(password)) != nil {
			continue
		}
		p := models.Principal{Username: username, Role: id.role}
		s.verified.Set(key, p, cache.DefaultExpiration)
		return p, nil
	}
	return models.Principal{}, ErrUnauthorized
}

// Claims defines JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken signs a token for p.
func (s *AuthService) GenerateToken(p models.Principal) (string, error) {
	if p.Username == "" || !p.Role.Satisfies(models.RoleUser) {
		return "", ErrUnauthorized
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: p.Role.String(),
	})
	return token.SignedString(s.secret)
}

// ParseToken validates a token and returns the principal it was issued to.
func (s *AuthService) ParseToken(accessToken string) (models.Principal, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return models.Principal{}, ErrInvalidToken
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return models.Principal{}, ErrInvalidToken
	}
	return models.Principal{Username: claims.Subject, Role: role}, nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func credentialKey(username, password string) string {
	sum := sha256.Sum256([]byte(username + "\x00" + password))
	return hex.EncodeToString(sum[:])
}
