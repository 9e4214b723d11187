package httpapi

import "time"

// timeNow is a seam so tests can freeze the clock without touching the
// store's own now-source.
var timeNow = time.Now
