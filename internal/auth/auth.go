// Package auth provides the authentication schemes used by the vendor APIs.
package auth

import "net/http"

// Authenticator attaches credentials to an outgoing HTTP request.
//
// Each vendor mandates its own scheme: ACLED wants key/email query
// parameters, Kobo a "Token" authorization header, DHIS2 either basic auth
// or an "ApiToken" header, TopDesk basic auth, and so on.
type Authenticator interface {
	Apply(req *http.Request)
}

// None is an Authenticator for APIs without authentication (GDELT, MODIS).
type None struct{}

func (None) Apply(*http.Request) {}

// Basic holds username/password credentials for HTTP basic auth.
type Basic struct {
	Username string
	Password string
}

func (b *Basic) Apply(req *http.Request) {
	if b == nil {
		return
	}
	req.SetBasicAuth(b.Username, b.Password)
}

// Valid reports whether both parts of the credential are set.
func (b *Basic) Valid() bool {
	return b != nil && b.Username != "" && b.Password != ""
}

// Token sets an Authorization header of the form "<Scheme> <Value>".
// Scheme is "Token" for Kobo, "ApiToken" for DHIS2 personal access tokens
// and "Bearer" for SharePoint.
type Token struct {
	Scheme string
	Value  string
}

func (t *Token) Apply(req *http.Request) {
	if t == nil || t.Value == "" {
		return
	}
	req.Header.Set("Authorization", t.Scheme+" "+t.Value)
}

// Valid reports whether a token value is configured.
func (t *Token) Valid() bool {
	return t != nil && t.Value != ""
}

// QueryParams adds fixed query parameters to every request. ACLED passes
// its API key and registered email this way, UniData its login/password.
type QueryParams map[string]string

func (q QueryParams) Apply(req *http.Request) {
	if len(q) == 0 {
		return
	}
	values := req.URL.Query()
	for k, v := range q {
		values.Set(k, v)
	}
	req.URL.RawQuery = values.Encode()
}

// Func adapts a function to the Authenticator interface. Power BI uses it
// to attach a bearer token that is refreshed between requests.
type Func func(req *http.Request)

func (f Func) Apply(req *http.Request) {
	if f != nil {
		f(req)
	}
}
