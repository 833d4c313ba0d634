// Package objectgate is a binary object storage gateway. It issues
// time-boxed upload and download URLs against a remote object store,
// enforces a per-object access control policy, and reconciles canonical
// /objects/<id> paths with the /local-uploads/<id> paths used when no
// credential broker is reachable.
//
// # Key Components
//
//   - Gateway: orchestrates upload issuance, policy attachment and ACL-checked streaming
//   - PathNormalizer: rewrites URLs and proxy-prefixed paths into canonical forms
//   - PolicyEngine: the default Authorizer evaluating an AclPolicy
//   - ObjectStore: interface for the remote store (see s3store, stowrystore)
//   - CredentialBroker: interface for URL signing (see broker)
//   - LocalServer: interface for the local fallback store (see fallback)
//
// # Storage Modes
//
// An object's mode is decided when its upload target is issued and never
// changes afterwards:
//
//   - ModeRemote: bytes live in the remote store and every read is ACL-checked
//   - ModeLocalFallback: bytes live on local disk and are served without an ACL check
//
// Local fallback is a trust downgrade. Every time it is used the gateway logs
// a warning and reports it through the configured Recorder.
//
// # Example Usage
//
//	gw, err := objectgate.NewGateway(store, signer, localService, objectgate.Config{
//	    PrivateObjectDir: "/club-objects/private",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	target := gw.IssueUploadTarget(ctx)
//	// client PUTs bytes to target.URL
//	objectPath, err := gw.FinalizeAndAuthorize(ctx, target.URL, objectgate.AclPolicy{Owner: userID})
//
// See the http package for the REST API built on top of Gateway.
package objectgate
