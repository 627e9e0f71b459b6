// Package wire declares the JSON frame schema spoken by a sensor gateway
// and implements parsing, validation, and serialization of that schema.
//
// Every frame is a single UTF-8 JSON object carrying at least a string
// Type field. Three families exist: outbound commands (From/To/Data),
// direct responses (Target/Data), and unsolicited notifications
// (Target/Data). Commands and their response counterparts are fixed by
// the protocol and are not derivable from the Type string alone, so the
// mapping is kept as an explicit table rather than inferred by prefix
// manipulation.
package wire
