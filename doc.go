// Package authcore is the authentication and authorization core for the
// caseworks case-management platform.
//
// It is transport-agnostic: callers supply an [AccountStore] backed by their
// user database and a Redis client for shared mutable state (sessions,
// lockout records, invitations), and the [Engine] provides login, token
// refresh with rotation and reuse detection, logout, per-request
// authorization, secret changes with history enforcement, invite-based
// registration, and account status management.
//
// Construct an engine with [NewBuilder]:
//
//	engine, err := authcore.NewBuilder().
//		WithConfig(authcore.DefaultConfig([]byte("signing-key-at-least-32-bytes-long"))).
//		WithRedis(client).
//		WithAccountStore(store).
//		Build()
//
// All operations take a context.Context and return sentinel errors from this
// package; match them with errors.Is.
package authcore
