// Package authapi exposes register, login, refresh and logout over HTTP and
// the bearer-token middleware that guards the rest of the API.
//
// Refresh tokens travel only in an HttpOnly cookie; access tokens are returned
// in the response body and verified statelessly.
package authapi
