package ports

import "github.com/gatewarden/gatewarden/core"

// SessionTokenizer converts between sessions and their cookie token
// form. The token only names the session; the store record stays
// authoritative for every lifecycle decision.
type SessionTokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
