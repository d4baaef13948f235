package githubapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/prtransfer/internal/githubapi"
	"github.com/temirov/prtransfer/internal/gitrepo"
)

const (
	testTokenConstant           = "ghp_secret"
	testOwnerConstant           = "acme"
	testRepositoryNameConstant  = "destination"
	testPullsPathConstant       = "/repos/acme/destination/pulls"
	testPullPathConstant        = "/repos/acme/destination/pulls/17"
	testBranchRefPathConstant   = "/repos/acme/destination/git/refs/heads/bitbucket-pr-5"
	testAuthorizationConstant   = "Bearer ghp_secret"
	testHeadBranchConstant      = "bitbucket-pr-5"
	testBaseBranchConstant      = "main"
	testPullRequestBodyConstant = "Imported from Bitbucket PR #5:\n\nDetails"
)

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          map[string]any
}

func newTestClient(testInstance *testing.T, handler func(http.ResponseWriter, *http.Request)) (*githubapi.Client, *[]recordedRequest) {
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		recorded := recordedRequest{Method: request.Method, Path: request.URL.Path, Authorization: request.Header.Get("Authorization")}
		if request.Body != nil {
			_ = json.NewDecoder(request.Body).Decode(&recorded.Body)
		}
		requests = append(requests, recorded)
		handler(responseWriter, request)
	}))
	testInstance.Cleanup(server.Close)

	client, creationError := githubapi.NewClient(context.Background(), githubapi.ClientOptions{
		Token:      testTokenConstant,
		Repository: gitrepo.RepositoryIdentifier{Owner: testOwnerConstant, Repository: testRepositoryNameConstant},
		BaseURL:    server.URL,
	})
	require.NoError(testInstance, creationError)
	return client, &requests
}

func writeJSON(responseWriter http.ResponseWriter, status int, payload string) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)
	_, _ = responseWriter.Write([]byte(payload))
}

func TestNewClientValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		options       githubapi.ClientOptions
		expectedField string
	}{
		{
			name:          "missing_token",
			options:       githubapi.ClientOptions{Repository: gitrepo.RepositoryIdentifier{Owner: testOwnerConstant, Repository: testRepositoryNameConstant}},
			expectedField: "token",
		},
		{
			name:          "missing_repository",
			options:       githubapi.ClientOptions{Token: testTokenConstant},
			expectedField: "repository",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubapi.NewClient(context.Background(), testCase.options)
			require.Nil(testInstance, client)
			var inputError githubapi.InvalidInputError
			require.ErrorAs(testInstance, creationError, &inputError)
			require.Equal(testInstance, testCase.expectedField, inputError.FieldName)
		})
	}
}

func TestCreatePullRequest(testInstance *testing.T) {
	client, requests := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		writeJSON(responseWriter, http.StatusCreated, `{"number":17,"title":"Add feature","body":"Imported","state":"open","head":{"ref":"bitbucket-pr-5"},"base":{"ref":"main"}}`)
	})

	pullRequest, createError := client.CreatePullRequest(context.Background(), githubapi.NewPullRequest{
		Title: "Add feature",
		Body:  testPullRequestBodyConstant,
		Head:  testHeadBranchConstant,
		Base:  testBaseBranchConstant,
	})
	require.NoError(testInstance, createError)
	require.Equal(testInstance, githubapi.PullRequest{Number: 17, Title: "Add feature", Body: "Imported", Head: testHeadBranchConstant, Base: testBaseBranchConstant, State: "open"}, pullRequest)

	require.Len(testInstance, *requests, 1)
	recorded := (*requests)[0]
	require.Equal(testInstance, http.MethodPost, recorded.Method)
	require.Equal(testInstance, testPullsPathConstant, recorded.Path)
	require.Equal(testInstance, testAuthorizationConstant, recorded.Authorization)
	require.Equal(testInstance, "Add feature", recorded.Body["title"])
	require.Equal(testInstance, testHeadBranchConstant, recorded.Body["head"])
	require.Equal(testInstance, testBaseBranchConstant, recorded.Body["base"])
	require.Equal(testInstance, testPullRequestBodyConstant, recorded.Body["body"])
}

func TestCreatePullRequestFailures(testInstance *testing.T) {
	testCases := []struct {
		name             string
		status           int
		payload          string
		expectRejection  bool
		expectedContains string
	}{
		{
			name:             "unprocessable_entity",
			status:           http.StatusUnprocessableEntity,
			payload:          `{"message":"Validation Failed","errors":[{"resource":"PullRequest","code":"custom","message":"A pull request already exists for acme:bitbucket-pr-5."}]}`,
			expectRejection:  true,
			expectedContains: "A pull request already exists",
		},
		{
			name:             "forbidden",
			status:           http.StatusForbidden,
			payload:          `{"message":"Resource not accessible by integration"}`,
			expectRejection:  false,
			expectedContains: "CreatePullRequest",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, _ := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
				writeJSON(responseWriter, testCase.status, testCase.payload)
			})

			_, createError := client.CreatePullRequest(context.Background(), githubapi.NewPullRequest{Title: "t", Head: testHeadBranchConstant, Base: testBaseBranchConstant})
			require.Error(testInstance, createError)
			require.Contains(testInstance, createError.Error(), testCase.expectedContains)
			require.NotContains(testInstance, createError.Error(), testTokenConstant)
			if testCase.expectRejection {
				require.ErrorIs(testInstance, createError, githubapi.ErrPullRequestRejected)
				var rejectedError githubapi.CreationRejectedError
				require.ErrorAs(testInstance, createError, &rejectedError)
				require.Equal(testInstance, testHeadBranchConstant, rejectedError.Head)
				return
			}
			require.NotErrorIs(testInstance, createError, githubapi.ErrPullRequestRejected)
			var operationError githubapi.OperationError
			require.ErrorAs(testInstance, createError, &operationError)
			require.Equal(testInstance, testCase.status, operationError.StatusCode)
		})
	}
}

func TestCreatePullRequestValidatesInput(testInstance *testing.T) {
	client, requests := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		writeJSON(responseWriter, http.StatusCreated, `{}`)
	})

	_, createError := client.CreatePullRequest(context.Background(), githubapi.NewPullRequest{Title: "t", Head: testHeadBranchConstant})
	var inputError githubapi.InvalidInputError
	require.ErrorAs(testInstance, createError, &inputError)
	require.Equal(testInstance, "base", inputError.FieldName)
	require.Empty(testInstance, *requests)
}

func TestClosePullRequest(testInstance *testing.T) {
	client, requests := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		writeJSON(responseWriter, http.StatusOK, `{"number":17,"state":"closed"}`)
	})

	pullRequest, closeError := client.ClosePullRequest(context.Background(), 17)
	require.NoError(testInstance, closeError)
	require.Equal(testInstance, "closed", pullRequest.State)

	require.Len(testInstance, *requests, 1)
	recorded := (*requests)[0]
	require.Equal(testInstance, http.MethodPatch, recorded.Method)
	require.Equal(testInstance, testPullPathConstant, recorded.Path)
	require.Equal(testInstance, "closed", recorded.Body["state"])
}

func TestClosePullRequestFailure(testInstance *testing.T) {
	client, _ := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
		writeJSON(responseWriter, http.StatusInternalServerError, `{"message":"boom"}`)
	})

	_, closeError := client.ClosePullRequest(context.Background(), 17)
	var operationError githubapi.OperationError
	require.ErrorAs(testInstance, closeError, &operationError)
	require.Equal(testInstance, http.StatusInternalServerError, operationError.StatusCode)

	_, invalidError := client.ClosePullRequest(context.Background(), 0)
	require.ErrorAs(testInstance, invalidError, &githubapi.InvalidInputError{})
}

func TestDeleteBranch(testInstance *testing.T) {
	testCases := []struct {
		name           string
		status         int
		expectedStatus githubapi.BranchDeletionStatus
		expectError    bool
	}{
		{name: "deleted", status: http.StatusNoContent, expectedStatus: githubapi.BranchDeletionStatusDeleted},
		{name: "already_absent", status: http.StatusNotFound, expectedStatus: githubapi.BranchDeletionStatusAlreadyAbsent},
		{name: "forbidden", status: http.StatusForbidden, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, requests := newTestClient(testInstance, func(responseWriter http.ResponseWriter, request *http.Request) {
				if testCase.status == http.StatusNoContent {
					responseWriter.WriteHeader(http.StatusNoContent)
					return
				}
				writeJSON(responseWriter, testCase.status, `{"message":"nope"}`)
			})

			status, deleteError := client.DeleteBranch(context.Background(), testHeadBranchConstant)
			require.Len(testInstance, *requests, 1)
			require.Equal(testInstance, http.MethodDelete, (*requests)[0].Method)
			require.Equal(testInstance, testBranchRefPathConstant, (*requests)[0].Path)
			if testCase.expectError {
				var operationError githubapi.OperationError
				require.ErrorAs(testInstance, deleteError, &operationError)
				require.Equal(testInstance, testCase.status, operationError.StatusCode)
				return
			}
			require.NoError(testInstance, deleteError)
			require.Equal(testInstance, testCase.expectedStatus, status)
		})
	}
}
