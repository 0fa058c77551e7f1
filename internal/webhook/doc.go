// Package webhook implements the intake HTTP endpoints.
//
// ElevenLabs posts a post-call payload to the webhook path. The server checks
// the body size, verifies the HMAC-SHA256 signature, extracts the known
// patient fields and sends one notification through the configured channel.
//
// # Security Model
//
// - HMAC-SHA256 signatures verified using crypto/subtle (constant-time comparison)
// - Body size limits enforced before any parsing
// - Request logging excludes payloads and extracted values
// - Verification is skipped only in dev mode or when no secret is configured,
// and both cases are logged at startup
//
// # Request Flow
//
//  1. HTTP POST arrives at the webhook path
//  2. Body size checked (reject with 413 if too large)
//  3. Signature header verified (reject with 401 if mismatch)
//  4. Body parsed as JSON (reject with 400 if malformed)
//  5. Fields extracted (reject with 400 if none found)
//  6. Duplicate bodies within dedupe_ttl answered with "duplicate"
//  7. Notification dispatched (500 on failure, never retried)
//  8. 200 returned with the delivery id
//
// The email path follows the same flow with a flat camelCase body and the
// basic template.
//
// # Example Usage
//
//	cfg, _ := webhook.FromGlobalConfig(globalCfg)
//	server := webhook.New(cfg, schema, notifier, ledger, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
