// Package ir provides the canonical value representation used when actions and
// states leave the process boundary: journal payloads, state hashes, and golden
// scenario traces.
//
// ir imports nothing internal. Every other package that needs a stable,
// comparable encoding of an action or a state converts it with FromGo and
// serializes it with MarshalCanonical.
//
// Key constraints:
//   - NO float types; numbers are int64 so encodings are byte-stable
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalized at the serialization boundary
package ir
