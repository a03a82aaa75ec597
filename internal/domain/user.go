package domain

// User is the authenticated account as reported by the auth service.
type User struct {
	ID    string
	Email string
	Name  string
}

// Token is the bearer credential returned by login/signup.
type Token struct {
	AccessToken string
	TokenType   string
}

// Valid reports whether the token carries a usable credential.
func (t Token) Valid() bool {
	return t.AccessToken != ""
}
