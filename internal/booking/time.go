package booking

import "time"

func nowUTC() time.Time { return time.Now().UTC() }

func nowRFC3339() string { return nowUTC().Format(time.RFC3339) }
