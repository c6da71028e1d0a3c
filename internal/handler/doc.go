// Package handler implements HTTP request handlers for the autobot API.
//
// # Handlers
//
// ScanHandler starts discovery scans, reports their progress and answers
// manual pings.
//
// CredentialHandler manages named credential groups. Passwords can be set
// but are never returned.
//
// DeploymentHandler pushes configuration scripts to devices and serves the
// deployment history.
//
// Middleware provides panic recovery, CORS and request logging, composed
// with Chain.
//
// # Response Format
//
// Success responses return JSON data. Error responses return JSON with an
// {error, details} structure. Request bodies are decoded and checked with
// go-playground/validator before they reach a service; input errors map to
// 400, a second concurrent scan to 409 and unknown history IDs to 404.
//
// A push whose device session fails is still a 200: the outcome is in the
// body's status field alongside the full step log.
package handler
