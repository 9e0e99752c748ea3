// Package natstransport binds the cache session to NATS.
//
// Topics map to NATS subjects by replacing '/' with '.'; the wildcard
// characters '*' and '>' carry the same meaning in both forms. Live
// subscriptions deliver decoded inbound messages to the session's
// handler. Cache requests travel as a request/reply exchange against the
// subject <prefix>.<cache-name>, with the request and response bodies
// encoded as SDT maps.
package natstransport
