// Package integration runs the kvk-sync commands end to end against a fake
// KvK API and a SQLite database.
package integration
