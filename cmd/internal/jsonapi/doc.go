// Package jsonapi writes JSON responses and JSON:API error documents, decodes
// bounded request bodies, and validates request structs.
package jsonapi
