// Package client is a Go consumer of the /api/v1 surface.
//
// It keeps the access token in a SessionStore, carries the refresh cookie in
// a cookie jar and routes authenticated calls through a RefreshCoordinator,
// which refreshes at most once for any number of concurrent 401s and retries
// each call exactly once.
package client
