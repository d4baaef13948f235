package gitrepo

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/temirov/prtransfer/internal/execshell"
)

const (
	sshProtocolPrefixConstant            = "ssh://"
	sshUserDelimiterConstant             = "@"
	sshPathDelimiterConstant             = ":"
	httpsProtocolPrefixConstant          = "https://"
	httpsSchemeConstant                  = "https"
	gitUserPrefixConstant                = "git@"
	pathSeparatorConstant                = "/"
	gitSuffixConstant                    = ".git"
	remoteURLParseErrorTemplateConstant  = "%s: %s"
	sshRemoteTemplateConstant            = "%s%s:%s/%s%s"
	repositoryIdentifierTemplateConstant = "%s/%s"
	invalidRemoteURLMessageConstant      = "invalid remote url"
	invalidRepositoryMessageConstant     = "expected <owner>/<repository>"
	unknownProtocolMessageConstant       = "unsupported remote protocol"
	requiredValueMessageConstant         = "value required"
	credentialsOverSSHMessageConstant    = "credentials are only supported for https remotes"
)

// RemoteProtocol enumerates supported git remote protocols.
type RemoteProtocol string

// Supported remote protocols.
const (
	RemoteProtocolSSH   RemoteProtocol = RemoteProtocol("ssh")
	RemoteProtocolHTTPS RemoteProtocol = RemoteProtocol("https")
)

// RepositoryIdentifier names a hosted repository as owner (workspace) and repository slug.
type RepositoryIdentifier struct {
	Owner      string
	Repository string
}

// String renders the identifier as owner/repository.
func (identifier RepositoryIdentifier) String() string {
	return fmt.Sprintf(repositoryIdentifierTemplateConstant, identifier.Owner, identifier.Repository)
}

// RemoteURL represents a structured git remote URL.
type RemoteURL struct {
	Protocol    RemoteProtocol
	Host        string
	Owner       string
	Repository  string
	Credentials *url.Userinfo
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// UnsupportedProtocolError indicates the provided protocol cannot be formatted.
type UnsupportedProtocolError struct {
	Protocol RemoteProtocol
}

// Error describes the unsupported protocol.
func (protocolError UnsupportedProtocolError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, protocolError.Protocol, unknownProtocolMessageConstant)
}

// ParseRepositoryIdentifier accepts either owner/repository or a full remote URL.
func ParseRepositoryIdentifier(value string) (RepositoryIdentifier, error) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return RepositoryIdentifier{}, RemoteURLParseError{Input: value, Message: requiredValueMessageConstant}
	}

	if strings.Contains(trimmedValue, "://") || strings.HasPrefix(trimmedValue, gitUserPrefixConstant) {
		remote, parseError := ParseRemoteURL(trimmedValue)
		if parseError != nil {
			return RepositoryIdentifier{}, parseError
		}
		return RepositoryIdentifier{Owner: remote.Owner, Repository: remote.Repository}, nil
	}

	owner, repository, splitError := splitOwnerAndRepository(trimmedValue)
	if splitError != nil {
		return RepositoryIdentifier{}, RemoteURLParseError{Input: value, Message: invalidRepositoryMessageConstant}
	}
	return RepositoryIdentifier{Owner: owner, Repository: repository}, nil
}

// ParseRemoteURL converts a textual remote URL into a structured representation.
// Credentials embedded in https remotes are retained in Credentials.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	switch {
	case len(trimmedRemote) == 0:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	case strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant):
		return parseSSHRemote(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant))
	case strings.HasPrefix(trimmedRemote, gitUserPrefixConstant):
		return parseSSHRemote(trimmedRemote)
	case strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant):
		return parseHTTPSRemote(trimmedRemote)
	default:
		return RemoteURL{}, RemoteURLParseError{Input: execshell.RedactCredentials(remote), Message: invalidRemoteURLMessageConstant}
	}
}

func parseSSHRemote(remote string) (RemoteURL, error) {
	userSplitIndex := strings.Index(remote, sshUserDelimiterConstant)
	if userSplitIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
	hostAndPath := remote[userSplitIndex+1:]

	delimiterIndex := strings.Index(hostAndPath, sshPathDelimiterConstant)
	if delimiterIndex == -1 {
		delimiterIndex = strings.Index(hostAndPath, pathSeparatorConstant)
	}
	if delimiterIndex == -1 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}

	owner, repository, parseError := splitOwnerAndRepository(hostAndPath[delimiterIndex+1:])
	if parseError != nil {
		return RemoteURL{}, parseError
	}
	return RemoteURL{Protocol: RemoteProtocolSSH, Host: hostAndPath[:delimiterIndex], Owner: owner, Repository: repository}, nil
}

func parseHTTPSRemote(remote string) (RemoteURL, error) {
	parsedURL, parseError := url.Parse(remote)
	if parseError != nil || len(parsedURL.Host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: execshell.RedactCredentials(remote), Message: invalidRemoteURLMessageConstant}
	}
	owner, repository, splitError := splitOwnerAndRepository(strings.Trim(parsedURL.Path, pathSeparatorConstant))
	if splitError != nil {
		return RemoteURL{}, splitError
	}
	return RemoteURL{Protocol: RemoteProtocolHTTPS, Host: parsedURL.Host, Owner: owner, Repository: repository, Credentials: parsedURL.User}, nil
}

func splitOwnerAndRepository(path string) (string, string, error) {
	segments := strings.Split(path, pathSeparatorConstant)
	if len(segments) != 2 || len(strings.TrimSpace(segments[0])) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	repository := strings.TrimSuffix(segments[1], gitSuffixConstant)
	if len(strings.TrimSpace(repository)) == 0 {
		return "", "", RemoteURLParseError{Input: path, Message: invalidRemoteURLMessageConstant}
	}
	return segments[0], repository, nil
}

// FormatRemoteURL creates a textual remote URL from a structured representation.
func FormatRemoteURL(remote RemoteURL) (string, error) {
	if len(strings.TrimSpace(remote.Host)) == 0 {
		return "", RemoteURLParseError{Input: remote.Host, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(remote.Owner)) == 0 {
		return "", RemoteURLParseError{Input: remote.Owner, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(remote.Repository)) == 0 {
		return "", RemoteURLParseError{Input: remote.Repository, Message: requiredValueMessageConstant}
	}

	switch remote.Protocol {
	case RemoteProtocolSSH:
		if remote.Credentials != nil {
			return "", RemoteURLParseError{Input: string(remote.Protocol), Message: credentialsOverSSHMessageConstant}
		}
		return fmt.Sprintf(sshRemoteTemplateConstant, gitUserPrefixConstant, remote.Host, remote.Owner, remote.Repository, gitSuffixConstant), nil
	case RemoteProtocolHTTPS:
		formattedURL := url.URL{
			Scheme: httpsSchemeConstant,
			User:   remote.Credentials,
			Host:   remote.Host,
			Path:   pathSeparatorConstant + remote.Owner + pathSeparatorConstant + remote.Repository + gitSuffixConstant,
		}
		return formattedURL.String(), nil
	default:
		return "", UnsupportedProtocolError{Protocol: remote.Protocol}
	}
}

// BuildAuthenticatedRemoteURL formats an https remote for the repository with embedded credentials.
// The result must only be passed to git; use RedactRemoteURL before logging it.
func BuildAuthenticatedRemoteURL(host string, identifier RepositoryIdentifier, credentials *url.Userinfo) (string, error) {
	return FormatRemoteURL(RemoteURL{
		Protocol:    RemoteProtocolHTTPS,
		Host:        strings.TrimSpace(host),
		Owner:       identifier.Owner,
		Repository:  identifier.Repository,
		Credentials: credentials,
	})
}

// RedactRemoteURL hides any user information embedded in the remote.
func RedactRemoteURL(remote string) string {
	return execshell.RedactCredentials(remote)
}
