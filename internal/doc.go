// Package internal contains private implementation details for the bulk
// transfer module. These packages are not intended for external use and
// may change without notice.
//
// The internal packages are organized as follows:
//   - storeapi: the remote store interface the engine is written against
//   - expand: source specification expansion (literals, prefixes, globs)
//   - plan: deterministic chunk planning
//   - identity: job identity hashing
//   - engine: the concurrent chunk transfer engine
//   - pool: chunk buffer pooling
//   - s3api: the AWS S3 client interface used by the s3store backend
//   - testutil: in-memory stores, mocks, and fixtures for tests
package internal
