// Package bitbucket reads merged pull requests from the Bitbucket Cloud REST
// API.
//
// Client pages through the pull request listing with HTTP basic
// authentication. Catalog wraps a Client with a local JSON cache whose reuse
// is decided by CachePolicy against an injected clock and filesystem.
package bitbucket
