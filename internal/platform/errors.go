package platform

import "github.com/candyconnect/candyconnectd/internal/vpnerr"

var errEmptyArgv = vpnerr.New(vpnerr.Spawn, "spawn: argv must not be empty", nil)
