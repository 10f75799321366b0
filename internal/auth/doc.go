// Package auth validates bearer JWTs issued by the identity provider and
// makes the authenticated user ID available on the request context.
package auth
