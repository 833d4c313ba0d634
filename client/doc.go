// Package client is a Go client for the objectgate HTTP API.
//
// It requests upload targets, PUTs bytes either to a signed remote URL or to
// the gateway's local fallback endpoint, finalizes profile images and reads
// objects back through the ACL check.
//
//	c, err := client.New(&client.Config{
//	    Endpoint: "https://club.example.com",
//	    Token:    jwt,
//	})
//	res, err := c.UploadFile(ctx, "avatar.png", "")
//	objectPath, err := c.SetProfileImage(ctx, res.UploadURL)
//
// Errors returned for non-2xx responses are *APIError values that unwrap
// to the matching objectgate sentinel, e.g. objectgate.ErrObjectNotFound.
package client
