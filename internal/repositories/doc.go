// Package repositories implements SQLite persistence for the long-lived credential.
//
// Key Implementations:
//   - [CredentialRepository] : single-row refresh credential store backing services.CredentialStore
//
// Only the credential worker holds a repository. Foreground code reaches the credential through
// the worker's command channel and never reads the secret directly.
//
// The schema lives in embedded migrations under internal/shared/sql and is applied by [shared.OpenDatabase].
package repositories
