package domain

// TokenType records whether a credential was reused or freshly fetched.
type TokenType string

const (
	TokenTypeCached TokenType = "cached-token"
	TokenTypeNew    TokenType = "new-token"
)

// Well-known credential names.
const (
	TokenNamePlatform = "token"
	TokenNameSierra   = "sierraToken"
)

// Credential is a bearer token resolved for one named credential.
type Credential struct {
	Token     string
	TokenName string
	TokenType TokenType
}
