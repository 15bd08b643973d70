// Package permdbtest provides an in-memory DynamoDB client for tests.
//
// FakeClient implements permdb.Client over a map keyed by (user, path). It
// honors attribute_not_exists conditions, projection expressions and batch
// writes, and lets tests inject failures per operation.
package permdbtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BatchWriteHook decides the fate of one BatchWriteItem call. Requests
// returned as unprocessed are reported back and left untouched; a non-nil
// error fails the whole call. All other requests are applied.
type BatchWriteHook func(requests []types.WriteRequest) (unprocessed []types.WriteRequest, err error)

// FakeClient is an in-memory DynamoDB table.
type FakeClient struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	batches [][]types.WriteRequest
	calls   map[string]int

	// PutItemErr, GetItemErr and DeleteItemErr fail the matching operation.
	PutItemErr    error
	GetItemErr    error
	DeleteItemErr error

	// OnBatchWrite is consulted for every BatchWriteItem call if set.
	OnBatchWrite BatchWriteHook
}

// NewFakeClient creates an empty table.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		items: make(map[string]map[string]types.AttributeValue),
		calls: make(map[string]int),
	}
}

func key(user, path string) string {
	return user + "\x00" + path
}

// KeyOf returns the (user, path) key of an item or key map.
func KeyOf(item map[string]types.AttributeValue) (user, path string) {
	if v, ok := item["user"].(*types.AttributeValueMemberS); ok {
		user = v.Value
	}
	if v, ok := item["path"].(*types.AttributeValueMemberS); ok {
		path = v.Value
	}
	return user, path
}

// RequestKey returns the (user, path) key targeted by a write request.
func RequestKey(req types.WriteRequest) (user, path string) {
	switch {
	case req.DeleteRequest != nil:
		return KeyOf(req.DeleteRequest.Key)
	case req.PutRequest != nil:
		return KeyOf(req.PutRequest.Item)
	default:
		return "", ""
	}
}

func (c *FakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["PutItem"]++
	if c.PutItemErr != nil {
		return nil, c.PutItemErr
	}

	k := key(KeyOf(params.Item))

	if params.ConditionExpression != nil && strings.HasPrefix(aws.ToString(params.ConditionExpression), "attribute_not_exists") {
		if _, exists := c.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}

	c.items[k] = clone(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (c *FakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["GetItem"]++
	if c.GetItemErr != nil {
		return nil, c.GetItemErr
	}

	item, ok := c.items[key(KeyOf(params.Key))]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}

	if params.ProjectionExpression == nil {
		return &dynamodb.GetItemOutput{Item: clone(item)}, nil
	}

	projected := make(map[string]types.AttributeValue)
	for _, name := range strings.Split(aws.ToString(params.ProjectionExpression), ",") {
		name = strings.TrimSpace(name)
		if resolved, ok := params.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		if av, ok := item[name]; ok {
			projected[name] = av
		}
	}

	return &dynamodb.GetItemOutput{Item: projected}, nil
}

func (c *FakeClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["DeleteItem"]++
	if c.DeleteItemErr != nil {
		return nil, c.DeleteItemErr
	}

	delete(c.items, key(KeyOf(params.Key)))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (c *FakeClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if len(params.RequestItems) != 1 {
		return nil, errors.New("permdbtest: expected exactly one table per batch")
	}

	var (
		table    string
		requests []types.WriteRequest
	)
	for t, reqs := range params.RequestItems {
		table, requests = t, reqs
	}

	c.mu.Lock()
	c.calls["BatchWriteItem"]++
	c.batches = append(c.batches, append([]types.WriteRequest(nil), requests...))
	hook := c.OnBatchWrite
	c.mu.Unlock()

	var unprocessed []types.WriteRequest
	if hook != nil {
		var err error
		unprocessed, err = hook(requests)
		if err != nil {
			return nil, err
		}
	}

	skip := make(map[string]struct{}, len(unprocessed))
	for _, req := range unprocessed {
		skip[key(RequestKey(req))] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, req := range requests {
		k := key(RequestKey(req))
		if _, ok := skip[k]; ok {
			continue
		}
		switch {
		case req.DeleteRequest != nil:
			delete(c.items, k)
		case req.PutRequest != nil:
			c.items[k] = clone(req.PutRequest.Item)
		}
	}

	out := &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{},
	}
	if len(unprocessed) > 0 {
		out.UnprocessedItems[table] = unprocessed
	}

	return out, nil
}

// Seed stores an item as is, bypassing conditions.
func (c *FakeClient) Seed(item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key(KeyOf(item))] = clone(item)
}

// SeedMaster stores a well-formed master entry owned by owner, with the
// given additional users, plus one user entry per additional user.
func (c *FakeClient) SeedMaster(owner, path string, others ...string) {
	users := append([]string{owner}, others...)

	c.Seed(map[string]types.AttributeValue{
		"user":  &types.AttributeValueMemberS{Value: owner},
		"path":  &types.AttributeValueMemberS{Value: path},
		"read":  &types.AttributeValueMemberBOOL{Value: true},
		"write": &types.AttributeValueMemberBOOL{Value: true},
		"users": &types.AttributeValueMemberSS{Value: users},
	})

	for _, u := range others {
		c.Seed(map[string]types.AttributeValue{
			"user": &types.AttributeValueMemberS{Value: u},
			"path": &types.AttributeValueMemberS{Value: path},
		})
	}
}

// Item returns a copy of the stored item.
func (c *FakeClient) Item(user, path string) (map[string]types.AttributeValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key(user, path)]
	if !ok {
		return nil, false
	}
	return clone(item), true
}

// Has reports whether an item exists for (user, path).
func (c *FakeClient) Has(user, path string) bool {
	_, ok := c.Item(user, path)
	return ok
}

// Len returns the number of stored items.
func (c *FakeClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Batches returns the requests of every BatchWriteItem call so far, in call order.
func (c *FakeClient) Batches() [][]types.WriteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]types.WriteRequest, len(c.batches))
	copy(out, c.batches)
	return out
}

// Calls returns how often the named operation was invoked, e.g. "PutItem".
func (c *FakeClient) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[op]
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
