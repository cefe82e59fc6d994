// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldViewerID  = "viewer_id"
	FieldMediaKey  = "media_key"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStrategy  = "strategy"
	FieldPID       = "pid"
	FieldBinary    = "binary"

	// Session fields
	FieldViewers = "viewers"
	FieldReason  = "reason"
)
