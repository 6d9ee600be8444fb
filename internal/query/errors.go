package query

import (
	"fmt"

	"github.com/steveyegge/weft/internal/types"
)

// QuerySyntaxError reports malformed query input. Token is the offending
// text ("" at end of input) and Pos its byte offset.
type QuerySyntaxError struct {
	Token string
	Pos   int
	Msg   string
}

func (e *QuerySyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("query syntax error at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("query syntax error at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

// Unwrap lets errors.Is match types.ErrQuerySyntax.
func (e *QuerySyntaxError) Unwrap() error {
	return types.ErrQuerySyntax
}

func syntaxError(tok Token, format string, args ...any) *QuerySyntaxError {
	return &QuerySyntaxError{Token: tok.Raw, Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}
