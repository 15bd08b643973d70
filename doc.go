// Package filesaga creates user files that live in two independent stores:
// a permission record in DynamoDB and an object in S3 (or any S3-compatible
// store). Both are created together or not at all.
//
// There is no shared transaction between the stores. The conditional write
// of the master entry is the only mutual exclusion between concurrent
// creators of the same path, and failures after it are undone by deleting
// the entry again. The object store is never rolled back.
//
// # Quick Start
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//
//	perms := permdb.New(dynamodb.NewFromConfig(cfg), "permissions")
//	objects := objstore.NewS3Store(s3.NewFromConfig(cfg), "user-data")
//
//	svc, _ := filesaga.New(objects, perms,
//	    filesaga.WithLogger(filesaga.NewJSONLogger(slog.LevelInfo)),
//	)
//	defer svc.Close()
//
//	resp, err := svc.Handle(ctx, filesaga.Request{UserID: "alice", FilePath: "/alice/notes.txt"})
//
// # Errors
//
// Every error returned by Handle is a *fault.Error. Use fault.KindOf to map
// it to a transport status:
//
//	switch fault.KindOf(err) {
//	case fault.KindArgument:  // malformed path
//	case fault.KindForbidden: // path belongs to another user
//	case fault.KindConflict:  // file already exists
//	case fault.KindServer:    // backend failure, retry the whole request
//	}
//
// fault.IsTransient reports server errors that are likely to succeed when
// the request is retried after a short delay.
//
// # Observability
//
// Logging uses log/slog through Logger. Metrics are reported to a
// MetricsCollector; BasicMetricsCollector keeps in-memory counters and the
// internal/metrics package exports them to Prometheus.
package filesaga
