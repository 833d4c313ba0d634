// Package http exposes the gateway over HTTP.
//
// Object reads, upload issuance, download URLs, ACL edits and profile images
// all require a bearer JWT (HS256). The token may also be passed as the
// token query parameter so that plain <img> tags can load private objects.
// Local fallback objects and public assets are served without a token.
//
// # Routes
//
//	GET|HEAD /objects/*                    stream an object the caller may read
//	GET|HEAD /local-uploads/{id}           stream a local fallback object
//	GET|HEAD /public-objects/*             serve an asset from the public search paths
//	POST     /api/objects/upload           issue an upload target
//	POST     /api/objects/download-url     sign a direct download URL
//	GET      /api/objects/acl?path=        read an object's policy
//	PUT      /api/objects/acl              replace an object's policy (owner only)
//	PUT      /api/profile-images           finalize an upload as the caller's avatar
//	PUT      /api/local-uploads-upload/{id} receive bytes for a local fallback target
//	GET      /healthz                      database liveness
//	GET      /metrics                      Prometheus scrape endpoint, when configured
//
// # Errors
//
// Errors are returned as JSON:
//
//	{"error": "not_found", "message": "Object not found"}
//
// Denied access is reported as 401, never 403. Missing public assets get a
// small HTML page instead, since browsers load them directly.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Auth: http.AuthConfig{Secret: []byte(secret)},
//	    CORS: http.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
//	}, gateway, fallbackService, db.ProfileImages())
//
//	srv := &nethttp.Server{Addr: ":5708", Handler: handler.Router()}
package http
