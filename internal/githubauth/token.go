package githubauth

import (
	"os"
	"strings"
)

// Environment variable names used by GitHub authentication helpers.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup reads a single environment variable.
type EnvironmentLookup func(key string) (string, bool)

// Token is a resolved GitHub token together with the variable that supplied it.
type Token struct {
	Value  string
	Source string
}

// ResolveToken returns the first non-empty GitHub token observed in the provided
// environment map, falling back to the process environment.
func ResolveToken(environment map[string]string) (Token, bool) {
	if token, found := ResolveTokenWithLookup(mapLookup(environment)); found {
		return token, true
	}
	return ResolveTokenWithLookup(os.LookupEnv)
}

// ResolveTokenWithLookup returns the first non-empty GitHub token reported by lookup,
// honoring the GH_TOKEN, GITHUB_TOKEN, GITHUB_API_TOKEN preference order.
func ResolveTokenWithLookup(lookup EnvironmentLookup) (Token, bool) {
	if lookup == nil {
		return Token{}, false
	}
	for _, key := range tokenPreference {
		value, exists := lookup(key)
		if !exists {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) > 0 {
			return Token{Value: value, Source: key}, true
		}
	}
	return Token{}, false
}

func mapLookup(environment map[string]string) EnvironmentLookup {
	return func(key string) (string, bool) {
		if environment == nil {
			return "", false
		}
		value, exists := environment[key]
		return value, exists
	}
}
