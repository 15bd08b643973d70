// Package resource bounds the remote calls issued against the directory
// store and the object store.
//
// A Controller combines two optional limits:
//
//   - In-flight: a weighted semaphore caps concurrently running calls.
//   - Rate: a token bucket caps calls per second.
//
// Both limits are disabled by default. Acquire never retries a call and
// never reorders callers; it only delays them.
//
//	rc := resource.NewController(resource.Config{
//	    MaxInFlight:       32,
//	    RequestsPerSecond: 200,
//	})
//
//	release, err := rc.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional limiting without nil checks everywhere.
package resource
