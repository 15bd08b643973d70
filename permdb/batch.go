package permdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/filesaga/fault"
	"golang.org/x/sync/errgroup"
)

type batchStatus uint8

const (
	batchSuccess batchStatus = iota
	batchPartialFailure
	batchError
)

// batchOutcome is the result of one BatchWriteItem call.
type batchOutcome struct {
	status      batchStatus
	users       []string
	unprocessed []types.WriteRequest
	err         error
}

// deleteUserEntries deletes the user entries of path for users in groups of
// at most BatchSize. All groups run concurrently and every group is awaited,
// failed or not. Unprocessed items are not retried; the caller retries the
// whole operation.
func (s *Store) deleteUserEntries(ctx context.Context, path string, users []string) error {
	groups := partition(users, s.opts.BatchSize)
	if len(groups) == 0 {
		return nil
	}

	outcomes := make([]batchOutcome, len(groups))

	var g errgroup.Group
	for i, group := range groups {
		g.Go(func() error {
			outcomes[i] = s.deleteBatch(ctx, path, group)
			// Outcomes are collected, never returned, so no group cancels another
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, o := range outcomes {
		switch o.status {
		case batchSuccess:
			continue
		case batchPartialFailure:
			s.opts.Logger.ErrorContext(ctx, "failed to delete user file entries",
				"path", path,
				"batch", i,
				"unprocessed", describeRequests(o.unprocessed),
			)
			errs = append(errs, fmt.Errorf("batch %d: %d unprocessed items", i, len(o.unprocessed)))
		case batchError:
			s.opts.Logger.ErrorContext(ctx, "failed to delete user file entries",
				"path", path,
				"batch", i,
				"users", o.users,
				"error", o.err,
			)
			errs = append(errs, fmt.Errorf("batch %d: %w", i, o.err))
		}
	}

	if len(errs) > 0 {
		return fault.DB("failed to delete user file entries", errors.Join(errs...))
	}

	return nil
}

func (s *Store) deleteBatch(ctx context.Context, path string, users []string) batchOutcome {
	requests := make([]types.WriteRequest, 0, len(users))
	for _, user := range users {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: entryKey(user, path),
			},
		})
	}

	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return batchOutcome{status: batchError, users: users, err: err}
	}
	defer release()

	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: requests,
		},
	})
	if err != nil {
		return batchOutcome{status: batchError, users: users, err: err}
	}

	var unprocessed []types.WriteRequest
	if out != nil {
		for _, items := range out.UnprocessedItems {
			unprocessed = append(unprocessed, items...)
		}
	}

	if len(unprocessed) > 0 {
		return batchOutcome{status: batchPartialFailure, users: users, unprocessed: unprocessed}
	}

	return batchOutcome{status: batchSuccess, users: users}
}

// partition splits users into consecutive groups of at most size.
func partition(users []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatchSize
	}

	groups := make([][]string, 0, (len(users)+size-1)/size)
	for start := 0; start < len(users); start += size {
		end := min(start+size, len(users))
		groups = append(groups, users[start:end])
	}

	return groups
}

func describeRequests(requests []types.WriteRequest) []string {
	out := make([]string, 0, len(requests))
	for _, req := range requests {
		if req.DeleteRequest == nil {
			continue
		}
		out = append(out, describeItem(req.DeleteRequest.Key))
	}
	return out
}
