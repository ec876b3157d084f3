// Package identity resolves bearer tokens from incoming fulfillment
// requests to a stable per-user key.
//
// Two resolver implementations are provided. ProfileResolver calls the
// OAuth provider's userinfo endpoint and uses the returned email address
// as the user key, matching account-linking flows where the provider owns
// the token. JWTResolver validates a locally signed HS256 token and reads
// the email claim directly, for deployments that mint their own tokens.
//
// Resolution happens once per request. The resolved key scopes every
// subsequent store operation, so a token can never reach another user's
// devices.
package identity
