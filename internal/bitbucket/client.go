package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAPIBaseURL is the Bitbucket Cloud REST API root.
	DefaultAPIBaseURL = "https://api.bitbucket.org/2.0"
	// DefaultPageLength is the largest page Bitbucket serves for pull request listings.
	DefaultPageLength = 50

	defaultRequestTimeout               = 30 * time.Second
	pullRequestsPathTemplateConstant    = "%s/repositories/%s/%s/pullrequests"
	stateQueryParameterConstant         = "state"
	pageLengthQueryParameterConstant    = "pagelen"
	acceptHeaderConstant                = "Accept"
	jsonMediaTypeConstant               = "application/json"
	maximumErrorBodyLengthConstant      = 512
	repositorySeparatorConstant         = "/"
	responseErrorTemplateConstant       = "bitbucket responded %d for %s: %s"
	responseDecodingErrorTemplate       = "unable to decode bitbucket response from %s: %v"
	requestErrorTemplateConstant        = "bitbucket request to %s failed: %w"
	paginationLoopErrorTemplateConstant = "bitbucket pagination revisited %s"
	invalidRepositoryErrorTemplate      = "invalid bitbucket repository %q: expected <workspace>/<repository>"
	missingUsernameMessageConstant      = "bitbucket username required"
	missingAppPasswordMessageConstant   = "bitbucket app password required"
	requestConstructionErrorTemplate    = "unable to build bitbucket request: %w"
	responseReadErrorTemplateConstant   = "unable to read bitbucket response from %s: %w"
)

var (
	// ErrUsernameRequired indicates the client was configured without a username.
	ErrUsernameRequired = errors.New(missingUsernameMessageConstant)
	// ErrAppPasswordRequired indicates the client was configured without an app password.
	ErrAppPasswordRequired = errors.New(missingAppPasswordMessageConstant)
)

// ResponseError reports a non-2xx response from the Bitbucket API.
type ResponseError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error describes the response.
func (responseError *ResponseError) Error() string {
	return fmt.Sprintf(responseErrorTemplateConstant, responseError.StatusCode, responseError.URL, responseError.Body)
}

// ResponseDecodingError reports a response body that could not be decoded.
type ResponseDecodingError struct {
	URL   string
	Cause error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplate, decodingError.URL, decodingError.Cause)
}

// Unwrap exposes the decoder error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL     string
	Username    string
	AppPassword string
	PageLength  int
	HTTPClient  *http.Client
}

// Client reads pull requests from the Bitbucket Cloud REST API using HTTP basic authentication.
type Client struct {
	baseURL     string
	username    string
	appPassword string
	pageLength  int
	httpClient  *http.Client
}

// NewClient validates options and constructs a Client.
func NewClient(options ClientOptions) (*Client, error) {
	if len(strings.TrimSpace(options.Username)) == 0 {
		return nil, ErrUsernameRequired
	}
	if len(strings.TrimSpace(options.AppPassword)) == 0 {
		return nil, ErrAppPasswordRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), repositorySeparatorConstant)
	if len(baseURL) == 0 {
		baseURL = DefaultAPIBaseURL
	}
	pageLength := options.PageLength
	if pageLength <= 0 {
		pageLength = DefaultPageLength
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Client{
		baseURL:     baseURL,
		username:    strings.TrimSpace(options.Username),
		appPassword: strings.TrimSpace(options.AppPassword),
		pageLength:  pageLength,
		httpClient:  httpClient,
	}, nil
}

// ListMergedPullRequests returns every merged pull request of repository (workspace/slug).
func (client *Client) ListMergedPullRequests(executionContext context.Context, repository string) ([]PullRequest, error) {
	payloads, listError := client.ListMergedPullRequestPayloads(executionContext, repository)
	if listError != nil {
		return nil, listError
	}
	return DecodePullRequests(payloads)
}

// ListMergedPullRequestPayloads returns the undecoded JSON of every merged pull request,
// following the opaque next links until the listing is exhausted.
func (client *Client) ListMergedPullRequestPayloads(executionContext context.Context, repository string) ([]json.RawMessage, error) {
	pageURL, urlError := client.firstPageURL(repository)
	if urlError != nil {
		return nil, urlError
	}

	visitedPages := map[string]struct{}{}
	var payloads []json.RawMessage
	for len(pageURL) > 0 {
		if _, visited := visitedPages[pageURL]; visited {
			return nil, fmt.Errorf(paginationLoopErrorTemplateConstant, pageURL)
		}
		visitedPages[pageURL] = struct{}{}

		page, pageError := client.fetchPage(executionContext, pageURL)
		if pageError != nil {
			return nil, pageError
		}
		payloads = append(payloads, page.Values...)
		pageURL = strings.TrimSpace(page.Next)
	}
	return payloads, nil
}

// DecodePullRequests decodes raw pull request documents.
func DecodePullRequests(payloads []json.RawMessage) ([]PullRequest, error) {
	pullRequests := make([]PullRequest, 0, len(payloads))
	for _, payload := range payloads {
		var pullRequest PullRequest
		if decodeError := json.Unmarshal(payload, &pullRequest); decodeError != nil {
			return nil, ResponseDecodingError{URL: pullRequestDocumentLabel, Cause: decodeError}
		}
		pullRequests = append(pullRequests, pullRequest)
	}
	return pullRequests, nil
}

const pullRequestDocumentLabel = "pull request document"

func (client *Client) firstPageURL(repository string) (string, error) {
	segments := strings.Split(strings.Trim(strings.TrimSpace(repository), repositorySeparatorConstant), repositorySeparatorConstant)
	if len(segments) != 2 || len(segments[0]) == 0 || len(segments[1]) == 0 {
		return "", fmt.Errorf(invalidRepositoryErrorTemplate, repository)
	}

	query := url.Values{}
	query.Set(stateQueryParameterConstant, string(PullRequestStateMerged))
	query.Set(pageLengthQueryParameterConstant, strconv.Itoa(client.pageLength))

	endpoint := fmt.Sprintf(pullRequestsPathTemplateConstant, client.baseURL, url.PathEscape(segments[0]), url.PathEscape(segments[1]))
	return endpoint + "?" + query.Encode(), nil
}

func (client *Client) fetchPage(executionContext context.Context, pageURL string) (pullRequestPage, error) {
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, pageURL, nil)
	if requestError != nil {
		return pullRequestPage{}, fmt.Errorf(requestConstructionErrorTemplate, requestError)
	}
	request.SetBasicAuth(client.username, client.appPassword)
	request.Header.Set(acceptHeaderConstant, jsonMediaTypeConstant)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return pullRequestPage{}, fmt.Errorf(requestErrorTemplateConstant, pageURL, responseError)
	}
	defer response.Body.Close()

	body, readError := io.ReadAll(response.Body)
	if readError != nil {
		return pullRequestPage{}, fmt.Errorf(responseReadErrorTemplateConstant, pageURL, readError)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return pullRequestPage{}, &ResponseError{StatusCode: response.StatusCode, URL: pageURL, Body: summarizeErrorBody(body)}
	}

	var page pullRequestPage
	if decodeError := json.Unmarshal(body, &page); decodeError != nil {
		return pullRequestPage{}, ResponseDecodingError{URL: pageURL, Cause: decodeError}
	}
	return page, nil
}

func summarizeErrorBody(body []byte) string {
	var payload errorPayload
	if json.Unmarshal(body, &payload) == nil && len(payload.Error.Message) > 0 {
		return payload.Error.Message
	}
	trimmedBody := strings.TrimSpace(string(body))
	if len(trimmedBody) > maximumErrorBodyLengthConstant {
		return trimmedBody[:maximumErrorBodyLengthConstant]
	}
	return trimmedBody
}
