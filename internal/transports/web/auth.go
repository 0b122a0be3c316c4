package web

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// Роли web-субъектов. Токен без ролей получает DefaultRoles.
const (
	RoleOperator = "operator"
	RoleAuditor  = "auditor"
)

// DefaultRoles выдаются токенам без явных ролей и субъектам из X-Subject-ID.
var DefaultRoles = []string{RoleOperator}

// Способы аутентификации, которые видит /v1/me.
const (
	authBearer = "bearer"
	authHeader = "subject_header"
)

// Token описывает bearer-токен. Сам токен не хранится, только SHA-256 в hex.
type Token struct {
	Subject string
	SHA256  string
	Roles   []string
}

type principal struct {
	Subject string
	Roles   []string
	Method  string
}

func (p principal) has(role string) bool {
	return role == "" || slices.Contains(p.Roles, role)
}

type tokenTable map[[sha256.Size]byte]principal

func newTokenTable(tokens []Token, logger *slog.Logger) tokenTable {
	t := make(tokenTable, len(tokens))
	for _, tok := range tokens {
		raw, err := hex.DecodeString(strings.TrimSpace(tok.SHA256))
		if err != nil || len(raw) != sha256.Size || strings.TrimSpace(tok.Subject) == "" {
			logger.Warn("web token ignored", "subject", tok.Subject, "reason", "need subject and 64 hex chars of sha256")
			continue
		}
		roles := tok.Roles
		if len(roles) == 0 {
			roles = DefaultRoles
		}
		var key [sha256.Size]byte
		copy(key[:], raw)
		t[key] = principal{Subject: strings.TrimSpace(tok.Subject), Roles: slices.Clone(roles), Method: authBearer}
	}
	return t
}

func (t tokenTable) lookup(token string) (principal, bool) {
	p, ok := t[sha256.Sum256([]byte(token))]
	return p, ok
}

// authenticate возвращает субъекта запроса или код ошибки для 401.
func (a *Adapter) authenticate(r *http.Request) (principal, string) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		scheme, token, _ := strings.Cut(h, " ")
		token = strings.TrimSpace(token)
		if !strings.EqualFold(scheme, "bearer") || token == "" {
			return principal{}, "invalid_token"
		}
		p, ok := a.tokens.lookup(token)
		if !ok {
			return principal{}, "invalid_token"
		}
		return p, ""
	}
	if a.cfg.AllowSubjectHeader {
		if id := strings.TrimSpace(r.Header.Get("X-Subject-ID")); id != "" {
			return principal{Subject: id, Roles: DefaultRoles, Method: authHeader}, ""
		}
	}
	return principal{}, "auth_required"
}
