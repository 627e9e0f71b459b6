package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFrame is returned when a frame is not a JSON object or lacks
// a string Type field.
var ErrInvalidFrame = errors.New("wire: invalid frame")

// knownTypes is every Type string this client recognizes, built once so
// DecodeInbound can flag an RTN_*/NOT_* frame whose Type is not in it as
// forward-compatible (tolerant fallback).
var knownTypes = func() map[string]struct{} {
	m := map[string]struct{}{
		TypePostLogin: {}, TypePostSubChanges: {}, TypeGetDynConnected: {},
		TypeTakeDynReading: {}, TypeTakeDynTemp: {}, TypeTakeDynBatt: {},
		TypeGetDynReadings: {}, TypeGetDynTemps: {}, TypeGetDynBatts: {}, TypePing: {},
		TypeRtnLogin: {}, TypeRtnSubChanges: {}, TypeRtnDynConnected: {},
		TypeRtnTakeDynReading: {}, TypeRtnTakeDynTemp: {}, TypeRtnTakeDynBatt: {},
		TypeRtnDynReadings: {}, TypeRtnDynTemps: {}, TypeRtnDynBatts: {},
		TypeNotAPConn: {}, TypeNotDynConn: {}, TypeNotDynReadingStart: {},
		TypeNotDynReading: {}, TypeNotDynTemp: {}, TypeNotDynBatt: {},
	}
	return m
}()

// Recognized reports whether typ is a Type string this client knows how
// to decode a full schema for. Unrecognized types (e.g. "PING_RESPONSE",
// a "*_ACK" extension) are not an error by themselves — the caller
// decides whether to log-and-discard them.
func Recognized(typ string) bool {
	_, ok := knownTypes[typ]
	return ok
}

// Decode parses raw bytes into an Envelope. It rejects anything that is
// not a JSON object carrying a non-empty string Type, but does not by
// itself validate the Data payload against the declared family — that
// happens when the caller decodes Data into its payload type with
// DecodeData, so that a
// structurally-present but not-fully-schema-conformant response can still
// be routed by its Type (the tolerant raw-dispatch path required by the
// decoding policy).
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing Type", ErrInvalidFrame)
	}
	return env, nil
}

// Encode serializes an envelope to wire bytes.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeData unmarshals an envelope's Data field into v. It is a thin
// wrapper so callers get a consistent wrapped error regardless of which
// payload type they decode into.
func DecodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("wire: decode %s data: %w", env.Type, err)
	}
	return nil
}

// DecodeInbound implements the full decoding policy for server→client
// frames: parse as JSON, reject non-objects and missing Type, then
// classify. A frame that is neither RTN_* nor NOT_* (for example the
// acknowledgement-style "PING_RESPONSE" or "*_ACK" frames the server is
// known to emit) is returned as an ErrInvalidFrame error, which the
// caller logs and discards. An RTN_*/NOT_* frame whose Type is not
// recognized is returned with forwardCompatible set, so the caller can
// still dispatch it by type.
func DecodeInbound(data []byte) (env Envelope, forwardCompatible bool, err error) {
	env, err = Decode(data)
	if err != nil {
		return Envelope{}, false, err
	}
	if !env.IsResponse() && !env.IsNotification() {
		return Envelope{}, false, fmt.Errorf("%w: %s is not an RTN_/NOT_ frame", ErrInvalidFrame, env.Type)
	}
	return env, !Recognized(env.Type), nil
}
