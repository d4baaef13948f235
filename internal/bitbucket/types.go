package bitbucket

import (
	"encoding/json"
	"time"
)

// PullRequestState is the Bitbucket lifecycle state of a pull request.
type PullRequestState string

// Bitbucket pull request states.
const (
	PullRequestStateMerged   PullRequestState = PullRequestState("MERGED")
	PullRequestStateOpen     PullRequestState = PullRequestState("OPEN")
	PullRequestStateDeclined PullRequestState = PullRequestState("DECLINED")
)

// PullRequest is the subset of a Bitbucket Cloud pull request needed to recreate it elsewhere.
type PullRequest struct {
	ID          int              `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	State       PullRequestState `json:"state"`
	CreatedOn   time.Time        `json:"created_on"`
	Source      Endpoint         `json:"source"`
	Destination Endpoint         `json:"destination"`
}

// Endpoint is one side of a pull request.
type Endpoint struct {
	Branch Branch `json:"branch"`
}

// Branch names a branch in the source repository.
type Branch struct {
	Name string `json:"name"`
}

// SourceBranchName returns the branch the pull request was opened from.
func (pullRequest PullRequest) SourceBranchName() string {
	return pullRequest.Source.Branch.Name
}

// DestinationBranchName returns the branch the pull request was merged into.
func (pullRequest PullRequest) DestinationBranchName() string {
	return pullRequest.Destination.Branch.Name
}

// pullRequestPage is one page of the paginated pull request listing.
type pullRequestPage struct {
	Values []json.RawMessage `json:"values"`
	Next   string            `json:"next"`
}

// errorPayload is the error document Bitbucket Cloud returns with non-2xx responses.
type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
