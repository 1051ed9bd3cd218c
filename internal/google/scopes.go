package google

// DefaultOAuthScopes are the Google OAuth scopes required for inbox
// classification. These scopes are used consistently across the application
// for OAuth configurations.
//
// The scopes provide access to:
//   - Gmail: read messages, modify labels, manage user labels
//   - User info: identify the authenticated account
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail scopes
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.labels",
}
