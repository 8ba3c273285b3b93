package otelx

import "os"

// lookupEnv is swappable in tests.
var lookupEnv = os.LookupEnv
