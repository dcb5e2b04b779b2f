// Package shared holds helpers used by tests in several packages.
//
// The testutil subpackage captures slog output so tests can assert on what
// a component logged, including attributes bound with Logger.With.
package shared
