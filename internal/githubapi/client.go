package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"

	"github.com/temirov/prtransfer/internal/gitrepo"
)

const (
	tokenFieldNameConstant                  = "token"
	repositoryFieldNameConstant             = "repository"
	titleFieldNameConstant                  = "title"
	headFieldNameConstant                   = "head"
	baseFieldNameConstant                   = "base"
	numberFieldNameConstant                 = "number"
	branchFieldNameConstant                 = "branch"
	baseURLFieldNameConstant                = "api_base_url"
	requiredValueMessageConstant            = "value required"
	positiveNumberMessageConstant           = "must be positive"
	invalidBaseURLMessageTemplateConstant   = "invalid api base url %q: %v"
	invalidInputErrorTemplateConstant       = "%s: %s"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	creationRejectedErrorTemplateConstant   = "github rejected pull request %s -> %s: %s"
	pullRequestRejectedMessageConstant      = "pull request rejected"
	branchReferencePrefixConstant           = "heads/"
	closedStateConstant                     = "closed"
	pathSeparatorConstant                   = "/"
	createPullRequestOperationConstant      = OperationName("CreatePullRequest")
	closePullRequestOperationConstant       = OperationName("ClosePullRequest")
	deleteBranchOperationConstant           = OperationName("DeleteBranch")
)

// ErrPullRequestRejected matches every CreationRejectedError.
var ErrPullRequestRejected = errors.New(pullRequestRejectedMessageConstant)

// OperationName identifies a GitHub REST workflow.
type OperationName string

// BranchDeletionStatus describes how a branch deletion concluded.
type BranchDeletionStatus int

// Branch deletion statuses.
const (
	BranchDeletionStatusDeleted BranchDeletionStatus = iota
	BranchDeletionStatusAlreadyAbsent
)

// PullRequest is a pull request on the destination repository.
type PullRequest struct {
	Number int
	Title  string
	Body   string
	Head   string
	Base   string
	State  string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps failures of GitHub REST operations.
type OperationError struct {
	Operation  OperationName
	StatusCode int
	Cause      error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// CreationRejectedError reports a pull request GitHub refused to open (HTTP 422),
// typically because an equivalent pull request exists or the branches share no history.
type CreationRejectedError struct {
	Head    string
	Base    string
	Message string
	Cause   error
}

// Error describes the rejection.
func (rejectedError CreationRejectedError) Error() string {
	return fmt.Sprintf(creationRejectedErrorTemplateConstant, rejectedError.Head, rejectedError.Base, rejectedError.Message)
}

// Is matches ErrPullRequestRejected.
func (rejectedError CreationRejectedError) Is(target error) bool {
	return target == ErrPullRequestRejected
}

// Unwrap exposes the underlying cause.
func (rejectedError CreationRejectedError) Unwrap() error {
	return rejectedError.Cause
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Token      string
	Repository gitrepo.RepositoryIdentifier
	// BaseURL overrides the REST API root, e.g. for GitHub Enterprise or tests.
	BaseURL string
}

// Client performs pull request and branch operations on a single GitHub repository.
type Client struct {
	client     *github.Client
	repository gitrepo.RepositoryIdentifier
}

// NewClient validates options and builds a Client authenticated with a static token.
func NewClient(executionContext context.Context, options ClientOptions) (*Client, error) {
	token := strings.TrimSpace(options.Token)
	if len(token) == 0 {
		return nil, InvalidInputError{FieldName: tokenFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(options.Repository.Owner) == 0 || len(options.Repository.Repository) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(executionContext, tokenSource))

	baseURL := strings.TrimSpace(options.BaseURL)
	if len(baseURL) > 0 {
		if !strings.HasSuffix(baseURL, pathSeparatorConstant) {
			baseURL += pathSeparatorConstant
		}
		parsedURL, parseError := url.Parse(baseURL)
		if parseError != nil {
			return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: fmt.Sprintf(invalidBaseURLMessageTemplateConstant, options.BaseURL, parseError)}
		}
		client.BaseURL = parsedURL
	}

	return &Client{client: client, repository: options.Repository}, nil
}

// Repository returns the repository the client operates on.
func (client *Client) Repository() gitrepo.RepositoryIdentifier {
	return client.repository
}

// CreatePullRequest opens a pull request.
func (client *Client) CreatePullRequest(executionContext context.Context, request NewPullRequest) (PullRequest, error) {
	if validationError := requireValues(
		titleFieldNameConstant, request.Title,
		headFieldNameConstant, request.Head,
		baseFieldNameConstant, request.Base,
	); validationError != nil {
		return PullRequest{}, validationError
	}

	created, response, createError := client.client.PullRequests.Create(executionContext, client.repository.Owner, client.repository.Repository, &github.NewPullRequest{
		Title: github.Ptr(request.Title),
		Head:  github.Ptr(request.Head),
		Base:  github.Ptr(request.Base),
		Body:  github.Ptr(request.Body),
	})
	if createError != nil {
		if statusCode(response, createError) == http.StatusUnprocessableEntity {
			return PullRequest{}, CreationRejectedError{
				Head:    request.Head,
				Base:    request.Base,
				Message: describeErrorResponse(createError),
				Cause:   createError,
			}
		}
		return PullRequest{}, OperationError{Operation: createPullRequestOperationConstant, StatusCode: statusCode(response, createError), Cause: createError}
	}
	return convertPullRequest(created), nil
}

// ClosePullRequest sets the state of pull request number to closed.
func (client *Client) ClosePullRequest(executionContext context.Context, number int) (PullRequest, error) {
	if number <= 0 {
		return PullRequest{}, InvalidInputError{FieldName: numberFieldNameConstant, Message: positiveNumberMessageConstant}
	}

	closed, response, editError := client.client.PullRequests.Edit(executionContext, client.repository.Owner, client.repository.Repository, number, &github.PullRequest{
		State: github.Ptr(closedStateConstant),
	})
	if editError != nil {
		return PullRequest{}, OperationError{Operation: closePullRequestOperationConstant, StatusCode: statusCode(response, editError), Cause: editError}
	}
	return convertPullRequest(closed), nil
}

// DeleteBranch removes refs/heads/branch. A branch that no longer exists is reported
// as BranchDeletionStatusAlreadyAbsent rather than as an error.
func (client *Client) DeleteBranch(executionContext context.Context, branch string) (BranchDeletionStatus, error) {
	if validationError := requireValues(branchFieldNameConstant, branch); validationError != nil {
		return BranchDeletionStatusDeleted, validationError
	}

	response, deleteError := client.client.Git.DeleteRef(executionContext, client.repository.Owner, client.repository.Repository, branchReferencePrefixConstant+branch)
	if deleteError != nil {
		code := statusCode(response, deleteError)
		if code == http.StatusNotFound {
			return BranchDeletionStatusAlreadyAbsent, nil
		}
		return BranchDeletionStatusDeleted, OperationError{Operation: deleteBranchOperationConstant, StatusCode: code, Cause: deleteError}
	}
	return BranchDeletionStatusDeleted, nil
}

func convertPullRequest(pullRequest *github.PullRequest) PullRequest {
	if pullRequest == nil {
		return PullRequest{}
	}
	return PullRequest{
		Number: pullRequest.GetNumber(),
		Title:  pullRequest.GetTitle(),
		Body:   pullRequest.GetBody(),
		Head:   pullRequest.GetHead().GetRef(),
		Base:   pullRequest.GetBase().GetRef(),
		State:  pullRequest.GetState(),
	}
}

func statusCode(response *github.Response, cause error) int {
	if response != nil && response.Response != nil {
		return response.StatusCode
	}
	var errorResponse *github.ErrorResponse
	if errors.As(cause, &errorResponse) && errorResponse.Response != nil {
		return errorResponse.Response.StatusCode
	}
	return 0
}

func describeErrorResponse(cause error) string {
	var errorResponse *github.ErrorResponse
	if !errors.As(cause, &errorResponse) {
		return cause.Error()
	}
	details := make([]string, 0, len(errorResponse.Errors)+1)
	if len(errorResponse.Message) > 0 {
		details = append(details, errorResponse.Message)
	}
	for _, detail := range errorResponse.Errors {
		if len(detail.Message) > 0 {
			details = append(details, detail.Message)
		}
	}
	if len(details) == 0 {
		return cause.Error()
	}
	return strings.Join(details, "; ")
}

func requireValues(fieldsAndValues ...string) error {
	for index := 0; index+1 < len(fieldsAndValues); index += 2 {
		if len(strings.TrimSpace(fieldsAndValues[index+1])) == 0 {
			return InvalidInputError{FieldName: fieldsAndValues[index], Message: requiredValueMessageConstant}
		}
	}
	return nil
}
