package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the identity carried by both token kinds.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Pair is a freshly minted access/refresh token pair.
// Lifetimes are whole seconds, as reported to clients.
type Pair struct {
	AccessToken      string
	AccessExpiresIn  int64
	RefreshToken     string
	RefreshExpiresIn int64
}

// Issuer signs and verifies access and refresh JWTs with distinct secrets.
type Issuer struct {
	issuer     string
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Issuer{
		issuer:     cfg.Issuer,
		accessKey:  []byte(strings.TrimSpace(cfg.AccessSecret)),
		refreshKey: []byte(strings.TrimSpace(cfg.RefreshSecret)),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		skew:       cfg.ClockSkew,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken returns a signed access token and its lifetime in seconds.
func (i *Issuer) IssueAccessToken(userID, email string, now time.Time) (string, int64, error) {
	tok, err := i.sign(i.accessKey, userID, email, now, i.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return tok, int64(i.accessTTL / time.Second), nil
}

// IssueRefreshToken returns a signed refresh token and its lifetime in seconds.
func (i *Issuer) IssueRefreshToken(userID, email string, now time.Time) (string, int64, error) {
	tok, err := i.sign(i.refreshKey, userID, email, now, i.refreshTTL)
	if err != nil {
		return "", 0, err
	}
	return tok, int64(i.refreshTTL / time.Second), nil
}

// IssuePair mints both tokens for one login or refresh.
func (i *Issuer) IssuePair(userID, email string, now time.Time) (Pair, error) {
	access, accessIn, err := i.IssueAccessToken(userID, email, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshIn, err := i.IssueRefreshToken(userID, email, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		AccessExpiresIn:  accessIn,
		RefreshToken:     refresh,
		RefreshExpiresIn: refreshIn,
	}, nil
}

func (i *Issuer) VerifyAccessToken(tok string, now time.Time) (Claims, error) {
	return i.verify(i.accessKey, tok, now)
}

func (i *Issuer) VerifyRefreshToken(tok string, now time.Time) (Claims, error) {
	return i.verify(i.refreshKey, tok, now)
}

func (i *Issuer) sign(key []byte, userID, email string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(email) == "" {
		return "", errors.New("session: token subject is required")
	}

	// jti keeps two tokens minted within the same second distinct.
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func (i *Issuer) verify(key []byte, tok string, now time.Time) (Claims, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || len(tok) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(i.skew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Email == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
