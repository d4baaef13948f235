// Package credentials resolves the Bitbucket and GitHub secrets needed for a
// transfer, consulting explicit configuration, environment variables, and the
// operating system keyring in that order.
package credentials
