// Package webhook ingests signed message deliveries.
//
// # Request Flow
//
//  1. POST /webhook arrives; the body is read up to the size limit (413 beyond it)
//  2. The signature header is checked with HMAC-SHA256 in constant time (401 on mismatch)
//  3. The JSON body is validated against the active profile (422 listing fields)
//  4. The message is inserted; a duplicate message_id is acknowledged, not stored
//  5. 200 {"status":"ok"} for created and duplicate deliveries; 500 on store faults
//
// Each request is classified as exactly one Outcome, counted once in
// webhook_requests_total and annotated onto the single access log line.
//
// # Profiles
//
// Field rules come from one Profile per process:
//
//	e164  from/to ^\+\d+$          ts ends in Z
//	in    from/to ^\+91\d{10}$     ts ends in +05:30
//
// # Bypass
//
// The literal signature "demo-signature" is accepted regardless of the
// secret. It is meant for demos; uses are logged at WARN with
// signature_bypass=true.
package webhook
