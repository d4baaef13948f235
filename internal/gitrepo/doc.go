// Package gitrepo contains helpers for manipulating the local working clone.
//
// RepositoryManager issues the clone, fetch, checkout, amend, push, and
// rev-parse commands used to materialize pull request branches, and the
// remote URL helpers build and redact credential-bearing remotes.
package gitrepo
