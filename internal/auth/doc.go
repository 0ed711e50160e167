// Package auth provides optional bearer-token authentication for the statekeeper HTTP API.
//
// # Tokens
//
// Tokens are HS256 JWTs signed with the configured auth.jwt_secret. The "sub"
// claim names the caller and is recorded in request logs:
//
//	verifier, err := NewJWTVerifier(secret)
//	token, err := verifier.Generate("admin-cli", 24*time.Hour)
//	subject, err := verifier.Verify(token)
//
// # HTTP Middleware
//
// HTTPAuthMiddleware rejects requests without a valid token and stores the
// subject in the request context, retrievable with SubjectFromContext.
// When no secret is configured the server does not install the middleware.
package auth
