// Package cache implements the cache request state machine: retrieval of
// historical messages from a message-cache cluster while a live
// subscription on the same topic is simultaneously active.
//
// A Session is created against a Transport and a Config naming the target
// cache. Each Request carries a topic, a mandatory live-data policy and
// optional modifier flags:
//
//   - Fulfill completes the request on whichever arrives first, the cache
//     response or a matching live message.
//   - Queue buffers matching live messages until the cache response
//     arrives, then delivers cache messages first and the buffered live
//     messages after, in arrival order.
//   - FlowThrough delivers live messages immediately and completes only
//     on the cache response. It is the only policy that accepts wildcard
//     topics.
//
// A request produces exactly one terminal outcome, delivered either as
// the return value of the blocking Send call or, with the NoWaitReply
// flag, once through the completion callback. CancelRequests and Destroy
// are safe to call from any goroutine and promptly unblock in-flight
// requests.
package cache
