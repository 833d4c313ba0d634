// Package broker provides objectgate.CredentialBroker implementations.
//
//   - Sidecar: asks an HTTP credential sidecar for a signed URL
//   - S3Presigner: signs locally with the AWS SDK (S3 and S3-compatible stores)
//   - StowrySigner: signs locally with Stowry native signing
//
// Every driver reports transport or signing failures wrapped in
// objectgate.ErrBrokerUnavailable so the gateway can decide whether to fall
// back to local storage.
package broker
