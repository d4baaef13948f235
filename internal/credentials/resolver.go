package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"go.uber.org/zap"

	"github.com/temirov/prtransfer/internal/githubauth"
)

const (
	// KeyringServiceName is the service under which prtransfer stores secrets.
	KeyringServiceName = "prtransfer"

	// EnvBitbucketUsername supplies the Bitbucket account name.
	EnvBitbucketUsername = "BITBUCKET_USERNAME"
	// EnvBitbucketAppPassword supplies the Bitbucket app password.
	EnvBitbucketAppPassword = "BITBUCKET_APP_PASSWORD"

	keyringFileDirectoryConstant       = "~/.config/prtransfer/credentials"
	keyringFilePasswordConstant        = "prtransfer-file-key"
	keyringOpenErrorTemplateConstant   = "opening keyring: %w"
	keyringReadErrorTemplateConstant   = "reading credential %q: %w"
	keyringWriteErrorTemplateConstant  = "storing credential %q: %w"
	missingCredentialsTemplateConstant = "missing credentials: %s"
	unknownCredentialKeyTemplate       = "unknown credential %q (expected one of %s)"
	credentialListSeparatorConstant    = ", "
	credentialResolvedLogMessage       = "credential resolved"
	keyringUnavailableLogMessage       = "keyring unavailable"
	credentialNameLogFieldConstant     = "credential"
	credentialSourceLogFieldConstant   = "source"
	credentialSourceConfiguration      = "configuration"
	credentialSourceKeyring            = "keyring"
)

// Key names a secret stored in the keyring.
type Key string

// Supported keyring entries.
const (
	KeyBitbucketUsername    Key = Key("bitbucket_username")
	KeyBitbucketAppPassword Key = Key("bitbucket_app_password")
	KeyGitHubToken          Key = Key("github_token")
)

var supportedKeys = []Key{KeyBitbucketUsername, KeyBitbucketAppPassword, KeyGitHubToken}

// Credentials groups the secrets required to talk to both hosts.
type Credentials struct {
	BitbucketUsername    string
	BitbucketAppPassword string
	GitHubToken          string
}

// MissingCredentialsError lists credentials that no source could supply.
type MissingCredentialsError struct {
	Keys []Key
}

// Error describes the missing credentials.
func (missingError MissingCredentialsError) Error() string {
	names := make([]string, 0, len(missingError.Keys))
	for _, key := range missingError.Keys {
		names = append(names, string(key))
	}
	return fmt.Sprintf(missingCredentialsTemplateConstant, strings.Join(names, credentialListSeparatorConstant))
}

// KeyringOpener returns the keyring consulted for credentials absent from configuration and environment.
type KeyringOpener func() (keyring.Keyring, error)

// OpenSystemKeyring opens the operating system keyring with a file fallback.
func OpenSystemKeyring() (keyring.Keyring, error) {
	ring, openError := keyring.Open(keyring.Config{
		ServiceName: KeyringServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  keyringFileDirectoryConstant,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringFilePasswordConstant),
		KeychainTrustApplication: true,
	})
	if openError != nil {
		return nil, fmt.Errorf(keyringOpenErrorTemplateConstant, openError)
	}
	return ring, nil
}

// Resolver fills credentials from configuration, then the environment, then the keyring.
type Resolver struct {
	logger      *zap.Logger
	lookup      githubauth.EnvironmentLookup
	openKeyring KeyringOpener
}

// NewResolver constructs a Resolver. Nil arguments select the process environment and system keyring.
func NewResolver(logger *zap.Logger, lookup githubauth.EnvironmentLookup, openKeyring KeyringOpener) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if openKeyring == nil {
		openKeyring = OpenSystemKeyring
	}
	return &Resolver{logger: logger, lookup: lookup, openKeyring: openKeyring}
}

// Resolve completes explicit with values from the environment and keyring.
// Secrets are never logged; only the source that supplied each one is.
func (resolver *Resolver) Resolve(explicit Credentials) (Credentials, error) {
	resolved := Credentials{
		BitbucketUsername:    strings.TrimSpace(explicit.BitbucketUsername),
		BitbucketAppPassword: strings.TrimSpace(explicit.BitbucketAppPassword),
		GitHubToken:          strings.TrimSpace(explicit.GitHubToken),
	}

	resolver.fillFromEnvironment(&resolved.BitbucketUsername, KeyBitbucketUsername, EnvBitbucketUsername)
	resolver.fillFromEnvironment(&resolved.BitbucketAppPassword, KeyBitbucketAppPassword, EnvBitbucketAppPassword)
	if len(resolved.GitHubToken) == 0 {
		if token, found := githubauth.ResolveTokenWithLookup(resolver.lookup); found {
			resolved.GitHubToken = token.Value
			resolver.logResolved(KeyGitHubToken, token.Source)
		}
	} else {
		resolver.logResolved(KeyGitHubToken, credentialSourceConfiguration)
	}

	targets := map[Key]*string{
		KeyBitbucketUsername:    &resolved.BitbucketUsername,
		KeyBitbucketAppPassword: &resolved.BitbucketAppPassword,
		KeyGitHubToken:          &resolved.GitHubToken,
	}
	if missing := missingKeys(targets); len(missing) > 0 {
		resolver.fillFromKeyring(targets, missing)
	}

	if missing := missingKeys(targets); len(missing) > 0 {
		return Credentials{}, MissingCredentialsError{Keys: missing}
	}
	return resolved, nil
}

// Store writes a credential into the keyring.
func (resolver *Resolver) Store(key Key, value string) error {
	if !isSupportedKey(key) {
		return fmt.Errorf(unknownCredentialKeyTemplate, key, supportedKeyList())
	}
	ring, openError := resolver.openKeyring()
	if openError != nil {
		return openError
	}
	if setError := ring.Set(keyring.Item{Key: string(key), Data: []byte(strings.TrimSpace(value))}); setError != nil {
		return fmt.Errorf(keyringWriteErrorTemplateConstant, key, setError)
	}
	return nil
}

// ParseKey validates a user-supplied credential name.
func ParseKey(name string) (Key, error) {
	candidate := Key(strings.TrimSpace(name))
	if !isSupportedKey(candidate) {
		return "", fmt.Errorf(unknownCredentialKeyTemplate, name, supportedKeyList())
	}
	return candidate, nil
}

func (resolver *Resolver) fillFromEnvironment(target *string, key Key, environmentVariable string) {
	if len(*target) > 0 {
		resolver.logResolved(key, credentialSourceConfiguration)
		return
	}
	value, exists := resolver.lookup(environmentVariable)
	if !exists || len(strings.TrimSpace(value)) == 0 {
		return
	}
	*target = strings.TrimSpace(value)
	resolver.logResolved(key, environmentVariable)
}

func (resolver *Resolver) fillFromKeyring(targets map[Key]*string, missing []Key) {
	ring, openError := resolver.openKeyring()
	if openError != nil {
		resolver.logger.Debug(keyringUnavailableLogMessage, zap.Error(openError))
		return
	}
	for _, key := range missing {
		item, getError := ring.Get(string(key))
		if getError != nil {
			if !errors.Is(getError, keyring.ErrKeyNotFound) {
				resolver.logger.Debug(keyringUnavailableLogMessage, zap.Error(fmt.Errorf(keyringReadErrorTemplateConstant, key, getError)))
			}
			continue
		}
		value := strings.TrimSpace(string(item.Data))
		if len(value) == 0 {
			continue
		}
		*targets[key] = value
		resolver.logResolved(key, credentialSourceKeyring)
	}
}

func (resolver *Resolver) logResolved(key Key, source string) {
	resolver.logger.Debug(credentialResolvedLogMessage, zap.String(credentialNameLogFieldConstant, string(key)), zap.String(credentialSourceLogFieldConstant, source))
}

func missingKeys(targets map[Key]*string) []Key {
	var missing []Key
	for _, key := range supportedKeys {
		if len(*targets[key]) == 0 {
			missing = append(missing, key)
		}
	}
	return missing
}

func isSupportedKey(candidate Key) bool {
	for _, key := range supportedKeys {
		if key == candidate {
			return true
		}
	}
	return false
}

func supportedKeyList() string {
	names := make([]string, 0, len(supportedKeys))
	for _, key := range supportedKeys {
		names = append(names, string(key))
	}
	return strings.Join(names, credentialListSeparatorConstant)
}
