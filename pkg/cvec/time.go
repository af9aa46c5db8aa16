package cvec

import "time"

// nowUnix returns the current Unix time in seconds. Factored out so the
// store and index agree on a single clock source.
func nowUnix() int64 { return time.Now().Unix() }
