package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// CommitDateLayout is the RFC 2822 layout handed to git when re-dating a commit.
	CommitDateLayout = "Mon, 02 Jan 2006 15:04:05 +0000"

	localBranchNameTemplateConstant       = "temp-src-%d"
	destinationBranchNameTemplateConstant = "bitbucket-pr-%d"
	originReferenceTemplateConstant       = "origin/%s"
	refspecTemplateConstant               = "%s:%s"
	sourceBranchMissingMessageConstant    = "source branch missing"
	sourceBranchMissingErrorTemplate      = "source branch %q of pull request #%d no longer exists"
)

// ErrSourceBranchMissing matches every SourceBranchMissingError.
var ErrSourceBranchMissing = errors.New(sourceBranchMissingMessageConstant)

// SourceBranchMissingError reports a pull request whose source branch was deleted from the source repository.
type SourceBranchMissingError struct {
	PullRequestID int
	Branch        string
}

// Error describes the missing branch.
func (missingError SourceBranchMissingError) Error() string {
	return fmt.Sprintf(sourceBranchMissingErrorTemplate, missingError.Branch, missingError.PullRequestID)
}

// Is matches ErrSourceBranchMissing.
func (missingError SourceBranchMissingError) Is(target error) bool {
	return target == ErrSourceBranchMissing
}

// TemporaryBranch is the branch fabricated on the destination for one pull request.
type TemporaryBranch struct {
	PullRequestID   int
	LocalName       string
	DestinationName string
	CommitSHA       string
}

// LocalBranchName returns the clone-local branch used for pull request identifier.
func LocalBranchName(identifier int) string {
	return fmt.Sprintf(localBranchNameTemplateConstant, identifier)
}

// DestinationBranchName returns the destination branch used as head for pull request identifier.
func DestinationBranchName(identifier int) string {
	return fmt.Sprintf(destinationBranchNameTemplateConstant, identifier)
}

// BranchMaterializer turns a source branch into a uniquely addressable destination branch.
// Re-dating the tip commit gives it a SHA no earlier transfer produced, so GitHub never
// treats the new head as already merged.
type BranchMaterializer struct {
	repository     RepositoryOperations
	clonePath      string
	destinationURL string
	clock          Clock
}

// NewBranchMaterializer constructs a BranchMaterializer. A nil clock uses time.Now.
func NewBranchMaterializer(repository RepositoryOperations, clonePath string, destinationURL string, clock Clock) *BranchMaterializer {
	if clock == nil {
		clock = time.Now
	}
	return &BranchMaterializer{repository: repository, clonePath: clonePath, destinationURL: destinationURL, clock: clock}
}

// VerifySource checks that origin/<sourceBranch> exists in the clone. A missing branch is
// reported as SourceBranchMissingError; any other verification failure is returned as is.
func (materializer *BranchMaterializer) VerifySource(executionContext context.Context, identifier int, sourceBranch string) error {
	exists, verifyError := materializer.repository.ReferenceExists(executionContext, materializer.clonePath, sourceReference(sourceBranch))
	if verifyError != nil {
		return verifyError
	}
	if !exists {
		return SourceBranchMissingError{PullRequestID: identifier, Branch: sourceBranch}
	}
	return nil
}

// Materialize creates temp-src-<id> from origin/<sourceBranch>, re-dates its tip, and
// force-pushes it to bitbucket-pr-<id> on the destination. The source branch must already
// have passed VerifySource.
func (materializer *BranchMaterializer) Materialize(executionContext context.Context, identifier int, sourceBranch string) (TemporaryBranch, error) {
	branch := TemporaryBranch{
		PullRequestID:   identifier,
		LocalName:       LocalBranchName(identifier),
		DestinationName: DestinationBranchName(identifier),
	}

	if checkoutError := materializer.repository.CreateOrResetBranch(executionContext, materializer.clonePath, branch.LocalName, sourceReference(sourceBranch)); checkoutError != nil {
		return TemporaryBranch{}, checkoutError
	}

	timestamp := materializer.clock().UTC().Format(CommitDateLayout)
	if amendError := materializer.repository.AmendCommitTimestamp(executionContext, materializer.clonePath, timestamp); amendError != nil {
		return TemporaryBranch{}, amendError
	}

	commitSHA, resolveError := materializer.repository.ResolveReference(executionContext, materializer.clonePath, branch.LocalName)
	if resolveError != nil {
		return TemporaryBranch{}, resolveError
	}
	branch.CommitSHA = commitSHA

	refspec := fmt.Sprintf(refspecTemplateConstant, branch.LocalName, branch.DestinationName)
	if pushError := materializer.repository.ForcePush(executionContext, materializer.clonePath, materializer.destinationURL, refspec); pushError != nil {
		return TemporaryBranch{}, pushError
	}
	return branch, nil
}

func sourceReference(sourceBranch string) string {
	return fmt.Sprintf(originReferenceTemplateConstant, sourceBranch)
}
