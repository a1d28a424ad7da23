// Package adminapi provides an HTTP client for the Shuma admin API.
//
// # Overview
//
// The client covers the read endpoints the console polls (config, analytics,
// events, bans, maze, cdp, monitoring), the write endpoints it saves through
// (config, ban, unban) and the session endpoints used at startup.
//
//	client, err := adminapi.NewClient("127.0.0.1:3000")
//	if err != nil {
//		return err
//	}
//	cfg, err := client.GetConfig(ctx)
//
// # Session Auth
//
// The session lives in a cookie jar owned by the client. Requests other than
// GET carry the CSRF token last recorded with SetCSRFToken in the
// X-Shuma-CSRF header. Every request carries a fresh X-Request-ID.
//
// # Errors
//
// Non-2xx responses surface as *StatusError with the start of the response
// body. IsUnauthorized reports 401 and 403 so callers can drop the session.
// Network and decode failures are wrapped with fmt.Errorf.
//
// # Sparse Payloads
//
// The server omits empty lists and sometimes encodes counters as strings.
// Count absorbs the latter; the Adapt helpers turn nil lists into empty ones
// so callers can range without checks. The client applies them itself.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package adminapi
