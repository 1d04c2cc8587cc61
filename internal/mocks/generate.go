// Package mocks provides gomock mocks for the auth ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/ports.
// Hand-written, controllable doubles for race and end-to-end tests live in internal/mocks/auth.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	idp := mocks.NewMockIdentityProvider(ctrl)
//	idp.EXPECT().SignOut(gomock.Any()).Return(nil)
package mocks

// IdentityProvider: Subscribe, SignIn, SignUp, SignOut, SendEmailVerification, SendPasswordResetEmail
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=identity_provider_mock.go github.com/festa-portal/portal-client/internal/ports IdentityProvider

// ProfileFetcher: GetProfile, CreateProfile
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=profile_fetcher_mock.go github.com/festa-portal/portal-client/internal/ports ProfileFetcher

// Navigator: CurrentPath, Navigate, Watch
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=navigator_mock.go github.com/festa-portal/portal-client/internal/ports Navigator

// SessionStore: Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=session_store_mock.go github.com/festa-portal/portal-client/internal/ports SessionStore
