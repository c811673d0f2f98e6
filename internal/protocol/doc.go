// Package protocol implements the JSON-RPC 2.0 message codec used on the
// wire. Messages are a tagged union of request, response, and notification;
// Decode classifies framed bytes into one of the three and Encode produces
// the bytes for a response the server sends back.
//
// A payload that is not valid JSON yields a ParseError. A payload that
// parses but violates the envelope (missing method, wrong identifier type,
// wrong version tag) yields an InvalidRequest; when an identifier was
// extractable from such a payload it is preserved so the caller can still
// address the error response.
package protocol
