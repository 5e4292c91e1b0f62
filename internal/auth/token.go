package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wardenhq/warden/internal/config"
)

// Common errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	Sub      string
	Typ      string
	Jti      string
	Iss      string
	Aud      []string
	IssuedAt time.Time
	Expiry   time.Time
}

// TokenPair is the result of issuing credentials. ExpiresIn is the refresh
// token lifetime in seconds, which is also the session lifetime.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenProvider defines the contract for issuing and verifying token pairs.
type TokenProvider interface {
	IssuePair(sub, jti string) (TokenPair, error)
	Verify(token, typ string) (*Claims, error)
}

// JWTProvider implements TokenProvider with a symmetric (HS*) or RSA (RS*)
// algorithm selected by configuration. Access tokens carry no jti; refresh
// tokens do, binding them to a stored session entry.
type JWTProvider struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   []string
}

var _ TokenProvider = (*JWTProvider)(nil)

// NewJWTProvider builds a provider from the security settings. Key material
// may be given raw or base64-wrapped.
func NewJWTProvider(cfg config.SecurityConfig) (*JWTProvider, error) {
	p := &JWTProvider{
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}

	switch cfg.Algorithm {
	case "HS256", "HS384", "HS512":
		p.method = jwt.GetSigningMethod(cfg.Algorithm)
		secret := decodeKeyMaterial(cfg.SecretKey)
		p.signKey = secret
		p.verifyKey = secret
	case "RS256", "RS384", "RS512":
		p.method = jwt.GetSigningMethod(cfg.Algorithm)
		priv, err := parseRSAPrivateKey(decodeKeyMaterial(cfg.SecretKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		p.signKey = priv
		if cfg.PublicKey != "" {
			pub, err := parseRSAPublicKey(decodeKeyMaterial(cfg.PublicKey))
			if err != nil {
				return nil, fmt.Errorf("failed to parse public key: %w", err)
			}
			p.verifyKey = pub
		} else {
			p.verifyKey = &priv.PublicKey
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}

	return p, nil
}

// WithIssuer sets the iss and aud claims stamped on issued tokens.
func (p *JWTProvider) WithIssuer(issuer string, audience ...string) *JWTProvider {
	p.issuer = issuer
	p.audience = audience
	return p
}

// IssuePair signs an access/refresh pair for the subject. The jti lands only
// in the refresh token.
func (p *JWTProvider) IssuePair(sub, jti string) (TokenPair, error) {
	now := time.Now()

	access, err := p.sign(sub, TokenTypeAccess, "", now, p.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := p.sign(sub, TokenTypeRefresh, jti, now, p.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(p.refreshTTL.Seconds()),
	}, nil
}

func (p *JWTProvider) sign(sub, typ, jti string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"typ": typ,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	if jti != "" {
		claims["jti"] = jti
	}
	if p.issuer != "" {
		claims["iss"] = p.issuer
	}
	if len(p.audience) > 0 {
		claims["aud"] = p.audience
	}

	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token, checks the signature and expiry, and enforces the
// expected typ claim.
func (p *JWTProvider) Verify(tokenString, typ string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != p.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	claims.Sub, _ = mc["sub"].(string)
	claims.Typ, _ = mc["typ"].(string)
	claims.Jti, _ = mc["jti"].(string)
	claims.Iss, _ = mc["iss"].(string)
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}
	if aud, err := mc.GetAudience(); err == nil {
		claims.Aud = aud
	}

	if claims.Sub == "" || claims.Typ != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// decodeKeyMaterial unwraps base64-encoded keys, falling back to the raw
// value when it does not decode.
func decodeKeyMaterial(raw string) []byte {
	trimmed := strings.TrimSpace(raw)
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded
	}
	return []byte(raw)
}

func parseRSAPrivateKey(keyPEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return priv, nil
	}
	key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("%v | %v", err, err2)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an RSA private key")
	}
	return priv, nil
}

func parseRSAPublicKey(keyPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("key is not an RSA public key")
	}
	return pub, nil
}
