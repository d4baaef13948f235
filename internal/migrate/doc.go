// Package migrate recreates the merged pull requests of a Bitbucket repository on GitHub.
// Each pull request gets a freshly dated branch so GitHub accepts it as a new head, is opened
// and immediately closed against its original base, and is then recorded so reruns skip it.
package migrate
