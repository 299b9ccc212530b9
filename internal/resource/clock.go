package resource

import "time"

// timeNow is indirected so breaker and limiter tests can pin the clock.
var timeNow = time.Now
