// Package objstore provides the object store side of a file: an existence
// check and the creation of an empty object keyed by the normalized path.
//
// Three implementations are available:
//
//   - S3Store uses the AWS SDK for Go v2.
//   - MinioStore uses the MinIO client and works with any S3-compatible storage.
//   - MemoryStore keeps objects in memory for tests and local runs.
//
// # Basic Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := objstore.NewS3Store(s3.NewFromConfig(cfg), "my-bucket")
//	exists, err := store.CheckPresence(ctx, p)
//
// Not-found responses are reported as (false, nil). Every other failure is a
// fault.KindServer error; an unknown state is never treated as absent.
package objstore
