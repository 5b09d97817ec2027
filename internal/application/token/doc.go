// Package token issues and verifies the short-lived, execution-scoped
// credentials the push channel accepts instead of session bearer tokens,
// which browser-native push clients cannot attach as headers.
package token
