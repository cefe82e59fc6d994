// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package proc

import "os"

// No graceful signal outside unix; the first phase is already a kill.
var gracefulSignal = os.Kill

const gracefulSignalName = "SIGKILL"
