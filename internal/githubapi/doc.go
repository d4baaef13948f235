// Package githubapi opens, closes, and cleans up pull requests on a GitHub
// repository through the REST API.
//
// Rejections of pull request creation (HTTP 422) surface as
// CreationRejectedError so callers can tell them apart from transport or
// permission failures.
package githubapi
