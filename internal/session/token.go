package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dnakit/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrMissingClaim = errors.New("session token has no user claim")
)

// Principal is the caller identified by a session token.
type Principal struct {
	UserID string
	Role   string
	Token  string
}

// HasRole reports whether the principal's role is one of roles, ignoring case.
func (p *Principal) HasRole(roles []string) bool {
	if p == nil || p.Role == "" {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), p.Role) {
			return true
		}
	}
	return false
}

// Parser extracts a Principal from a session token. The user id is read
// from exactly one claim; a token without it is rejected.
type Parser struct {
	secret    []byte
	userClaim string
	roleClaim string
	parser    *jwt.Parser
	now       func() time.Time
}

func NewParser(cfg config.AuthConfig) *Parser {
	p := &Parser{
		userClaim: cfg.UserClaim,
		roleClaim: cfg.RoleClaim,
		now:       time.Now,
	}
	if cfg.JWTSecret != "" {
		p.secret = []byte(cfg.JWTSecret)
	}
	p.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		// Numeric ids above 2^53 would be rounded as float64.
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	)
	return p
}

// Verifying reports whether signatures are checked.
func (p *Parser) Verifying() bool {
	return p.secret != nil
}

func (p *Parser) Parse(raw string) (*Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if p.secret != nil {
		tok, err := p.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return p.secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !tok.Valid {
			return nil, ErrInvalidToken
		}
	} else {
		if _, _, err := p.parser.ParseUnverified(raw, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if exp != nil && exp.Before(p.now()) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
	}

	userID := claimString(claims[p.userClaim])
	if userID == "" {
		return nil, fmt.Errorf("%w %q", ErrMissingClaim, p.userClaim)
	}

	return &Principal{
		UserID: userID,
		Role:   claimString(claims[p.roleClaim]),
		Token:  raw,
	}, nil
}

// BearerToken pulls the token out of an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

func claimString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		// Multi-valued role claims: the first entry wins.
		if len(val) > 0 {
			return claimString(val[0])
		}
	}
	return ""
}
