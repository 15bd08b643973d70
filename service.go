package filesaga

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/filesaga/fault"
	"github.com/hupe1980/filesaga/userpath"
	"golang.org/x/sync/errgroup"
)

// ObjectStore holds the file objects. objstore.S3Store, objstore.MinioStore
// and objstore.MemoryStore satisfy it.
type ObjectStore interface {
	// CheckPresence reports whether the object of p exists. An unknown state
	// is an error, never false.
	CheckPresence(ctx context.Context, p userpath.Path) (bool, error)
	// Create writes the object of p without preconditions.
	Create(ctx context.Context, p userpath.Path) error
}

// PermissionStore holds the master entries. *permdb.Store satisfies it.
type PermissionStore interface {
	// CreateMasterEntry fails with fault.KindEntryAlreadyExists if the
	// entry already exists.
	CreateMasterEntry(ctx context.Context, p userpath.Path) error
	// DeleteMasterEntry removes the entry and its dependent user entries.
	DeleteMasterEntry(ctx context.Context, p userpath.Path) error
}

// Request is the inbound create-file request.
type Request struct {
	UserID   string `json:"userID" validate:"required"`
	FilePath string `json:"filePath" validate:"required"`
}

// Response is the result of a successful create-file request.
type Response struct {
	FilePath string `json:"filePath"`
}

// Service creates files across the object store and the permission store.
// It is safe for concurrent use.
type Service struct {
	objects ObjectStore
	perms   PermissionStore

	logger              *Logger
	metrics             MetricsCollector
	compensationTimeout time.Duration

	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

// New creates a Service over the given stores.
func New(objects ObjectStore, perms PermissionStore, optFns ...Option) (*Service, error) {
	if objects == nil || perms == nil {
		return nil, ErrMissingStore
	}

	opts := applyOptions(optFns)

	return &Service{
		objects:             objects,
		perms:               perms,
		logger:              opts.logger,
		metrics:             opts.metricsCollector,
		compensationTimeout: opts.compensationTimeout,
	}, nil
}

// Handle validates req, checks that the path belongs to the requesting user
// and creates the file.
//
// Every returned error is a *fault.Error of kind Argument, Forbidden,
// Conflict, NotFound or Server.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	p, err := userpath.FromAbsolute(req.FilePath)
	if err != nil {
		return Response{}, translateError(err)
	}

	if p.UserID() != req.UserID {
		return Response{}, fault.Forbidden(msgForbiddenPath)
	}

	if _, err := s.CreateFile(ctx, req.UserID, p); err != nil {
		return Response{}, translateError(err)
	}

	return Response{FilePath: p.Absolute()}, nil
}

// CreateFile creates the master entry and the object of p and returns the
// normalized path.
//
// p must belong to userID. On failure nothing this call created in the
// permission store is left behind, unless the compensation itself failed,
// which is reported as a server error.
func (s *Service) CreateFile(ctx context.Context, userID string, p userpath.Path) (string, error) {
	if p.IsZero() {
		return "", fault.Argument("empty path")
	}
	if p.UserID() != userID {
		return "", fault.Forbidden(msgForbiddenPath)
	}

	if !s.enter() {
		return "", fault.Server(msgShuttingDown, ErrClosed)
	}
	defer s.leave()

	start := time.Now()
	err := s.createFile(ctx, p)
	s.metrics.RecordCreate(time.Since(start), err)
	s.logger.LogCreate(ctx, p.Normalized(), err)

	if err != nil {
		return "", err
	}

	return p.Normalized(), nil
}

// entryOutcome classifies the conditional create of the master entry.
type entryOutcome uint8

const (
	entryCreated entryOutcome = iota
	entryExisted
	entryFailed
)

func classifyEntry(err error) entryOutcome {
	switch {
	case err == nil:
		return entryCreated
	case fault.Is(err, fault.KindEntryAlreadyExists):
		return entryExisted
	default:
		return entryFailed
	}
}

func (s *Service) createFile(ctx context.Context, p userpath.Path) error {
	var (
		exists   bool
		checkErr error
		entryErr error
	)

	// Both calls are always awaited so a fresh entry is never lost.
	var g errgroup.Group
	g.Go(func() error {
		exists, checkErr = s.objects.CheckPresence(ctx, p)
		return nil
	})
	g.Go(func() error {
		entryErr = s.perms.CreateMasterEntry(ctx, p)
		return nil
	})
	_ = g.Wait()

	entry := classifyEntry(entryErr)

	if checkErr != nil {
		if entry == entryCreated {
			if compErr := s.compensate(ctx, p, checkErr); compErr != nil {
				return fault.Server(msgCreateFailed, errors.Join(checkErr, compErr))
			}
		}
		return fault.Server(msgCreateFailed, errors.Join(checkErr, entryErr))
	}

	switch entry {
	case entryExisted:
		// Another creator owns the entry, whether or not its object is there yet.
		return fault.Conflict(msgConflict)

	case entryFailed:
		if exists {
			return fault.TransientServer(msgRetryLater, entryErr)
		}
		return entryErr
	}

	if exists {
		// The object outlived its entry, most likely a delete in flight.
		leaked := errors.New("object exists without master entry")
		if compErr := s.compensate(ctx, p, leaked); compErr != nil {
			return fault.Server(msgCreateFailed, errors.Join(leaked, compErr))
		}
		return fault.TransientServer(msgRetryLater, leaked)
	}

	if err := s.objects.Create(ctx, p); err != nil {
		if compErr := s.compensate(ctx, p, err); compErr != nil {
			return fault.Server(msgCreateFailed, errors.Join(err, compErr))
		}
		return fault.Server(msgCreateFailed, err)
	}

	return nil
}

// compensate deletes the master entry this call created. It runs detached
// from ctx cancellation, since the failed step often failed because ctx did.
func (s *Service) compensate(ctx context.Context, p userpath.Path, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	err := s.perms.DeleteMasterEntry(ctx, p)
	s.metrics.RecordCompensation(err)
	s.logger.LogCompensation(ctx, p.Normalized(), cause, err)
	return err
}
