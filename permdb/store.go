package permdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/resource"
	"github.com/hupe1980/filesaga/userpath"
)

// Attribute names of the permission table.
const (
	AttrUser       = "user"
	AttrPath       = "path"
	AttrRead       = "read"
	AttrWrite      = "write"
	AttrUsers      = "users"
	AttrDeleteTime = "delete-time"
)

// MaxBatchSize is the maximum number of requests in one BatchWriteItem call.
// See https://docs.aws.amazon.com/amazondynamodb/latest/APIReference/API_BatchWriteItem.html
const MaxBatchSize = 25

// Client is the interface for DynamoDB operations. *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Options configures a Store.
type Options struct {
	// BatchSize is the number of user entries deleted per BatchWriteItem call.
	// Values outside (0, MaxBatchSize] are replaced by MaxBatchSize.
	BatchSize int

	// Logger receives failure details. Defaults to a discarding logger.
	Logger *slog.Logger

	// Controller optionally throttles calls. A nil Controller does not limit.
	Controller *resource.Controller
}

// Store is the DynamoDB-backed permission directory.
// It is safe for concurrent use.
type Store struct {
	client Client
	table  string
	opts   Options
}

// New creates a permission store over the given table.
func New(client Client, table string, optFns ...func(*Options)) *Store {
	opts := Options{
		BatchSize: MaxBatchSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BatchSize <= 0 || opts.BatchSize > MaxBatchSize {
		opts.BatchSize = MaxBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		client: client,
		table:  table,
		opts:   opts,
	}
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

// masterItem is the persisted shape of a freshly created master entry.
type masterItem struct {
	User  string   `dynamodbav:"user"`
	Path  string   `dynamodbav:"path"`
	Read  bool     `dynamodbav:"read"`
	Write bool     `dynamodbav:"write"`
	Users []string `dynamodbav:"users,stringset"`
}

// CreateMasterEntry creates the master entry for p, owned by p.UserID().
//
// Returns a fault.KindEntryAlreadyExists error if an entry for the key
// already exists, and a fault.KindDB error on any other failure.
func (s *Store) CreateMasterEntry(ctx context.Context, p userpath.Path) error {
	item, err := attributevalue.MarshalMap(masterItem{
		User:  p.UserID(),
		Path:  p.Normalized(),
		Read:  true,
		Write: true,
		// A string set cannot be empty, the owner is always a member
		Users: []string{p.UserID()},
	})
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "marshalling master entry failed", "path", p.Normalized(), "error", err)
		return fault.DB("creating file failed", err)
	}

	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return fault.DB("creating file failed", err)
	}
	defer release()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#u)"),
		ExpressionAttributeNames: map[string]string{
			"#u": AttrUser,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fault.EntryAlreadyExists("")
		}
		s.opts.Logger.ErrorContext(ctx, "creating master entry failed", "path", p.Normalized(), "error", err)
		return fault.DB("creating file failed", err)
	}

	return nil
}

// GetMasterEntry retrieves the master entry of p.
//
// Returns a fault.KindNotFound error if no entry exists and a fault.KindDB
// error if the call fails or the stored record is malformed.
func (s *Store) GetMasterEntry(ctx context.Context, p userpath.Path) (MasterEntry, error) {
	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return MasterEntry{}, fault.DB("retrieving file metadata failed", err)
	}
	defer release()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.table),
		Key:                  entryKey(p.UserID(), p.Normalized()),
		ProjectionExpression: aws.String("#r, #w, #us, #dt"),
		ExpressionAttributeNames: map[string]string{
			"#r":  AttrRead,
			"#w":  AttrWrite,
			"#us": AttrUsers,
			"#dt": AttrDeleteTime,
		},
	})
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "retrieving master entry failed", "path", p.Normalized(), "error", err)
		return MasterEntry{}, fault.DB("retrieving file metadata failed", err)
	}

	if out == nil || len(out.Item) == 0 {
		return MasterEntry{}, fault.NotFound("file not found")
	}

	entry, err := decodeMasterEntry(p, out.Item)
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "invalid data in DB, corrupted master entry",
			"path", p.Normalized(),
			"item", describeItem(out.Item),
			"error", err,
		)
		return MasterEntry{}, fault.DB("corrupted file metadata", err)
	}

	return entry, nil
}

// DeleteMasterEntry deletes the user entries of every user with access to p
// and then the master entry itself.
//
// If the user entry cleanup fails, the cleanup error is returned and the
// final master delete is skipped.
func (s *Store) DeleteMasterEntry(ctx context.Context, p userpath.Path) error {
	entry, err := s.GetMasterEntry(ctx, p)
	if err != nil {
		return err
	}

	if err := s.DeleteMasterEntryDependencies(ctx, entry); err != nil {
		return err
	}

	release, err := s.opts.Controller.Acquire(ctx)
	if err != nil {
		return fault.DB("changing file metadata failed", err)
	}
	defer release()

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       entryKey(p.UserID(), p.Normalized()),
	})
	if err != nil {
		s.opts.Logger.ErrorContext(ctx, "deleting master entry failed", "path", p.Normalized(), "error", err)
		return fault.DB("changing file metadata failed", err)
	}

	return nil
}

// DeleteMasterEntryDependencies deletes only the user entries of entry.
func (s *Store) DeleteMasterEntryDependencies(ctx context.Context, entry MasterEntry) error {
	return s.deleteUserEntries(ctx, entry.Path.Normalized(), entry.Users)
}

func entryKey(user, path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrUser: &types.AttributeValueMemberS{Value: user},
		AttrPath: &types.AttributeValueMemberS{Value: path},
	}
}
