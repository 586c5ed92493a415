// Package webhook implements the public ingestion path: every call to
// /webhook/{name} is resolved to an active endpoint, checked against the
// endpoint's bearer token and stored as a log entry.
//
// # Request Flow
//
//  1. Resolve: active endpoints named {name} are looked up (404 if none)
//  2. Authenticate: a presented "Authorization: Bearer" value must equal the
//     token of one of them, compared in constant time (401 otherwise)
//  3. Capture: method, headers, body, client address and User-Agent
//  4. Persist: one insert bound to the request context (500 on failure)
//  5. Respond: 200 with the stored log id
//
// GET, POST, PUT, DELETE and PATCH are handled identically; the verb is
// recorded, not routed on.
//
// # Auth Policy
//
// A call without a bearer token is accepted under the permissive policy
// (the default, and what existing senders rely on) and rejected under
// require_token:
//
//	webhooks:
//	  auth_policy: require_token
//
// Permissive means anyone who knows an endpoint name can write to its log.
//
// # Error Responses
//
// Errors are JSON {"error": message} and never include storage detail:
//
// - 401 invalid token / missing token
// - 404 endpoint not found (unknown or inactive)
// - 429 rate limit exceeded (only when webhooks.rate_limit.requests > 0)
// - 500 internal error
package webhook
