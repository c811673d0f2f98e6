// Package transport frames discrete messages over a byte stream.
//
// The framing policy is newline-delimited UTF-8 JSON: every message occupies
// exactly one line, terminated by '\n' (an optional preceding '\r' is
// stripped). This is the only framing scheme the server speaks; mixing in
// length-prefixed frames would corrupt the stream.
//
// Reads buffer partial input across stream reads. Writes are atomic with
// respect to concurrent writers: two goroutines writing through the same
// framer never interleave their bytes.
package transport
