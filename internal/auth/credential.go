// Package auth carries the caller's bearer credential through a request and validates
// gateway tokens.
package auth

import (
	"context"
	"strings"
)

type credentialKey struct{}

// WithCredential stores the raw Authorization header value so outbound calls can forward it
// unchanged.
func WithCredential(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, credentialKey{}, header)
}

func Credential(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(credentialKey{}).(string)
	return v, ok && v != ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
