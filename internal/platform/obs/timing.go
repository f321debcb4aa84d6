package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

// RequestIDKey carries the per-request correlation id through contexts.
const RequestIDKey ctxKey = "req_id"

// Time logs an operation's duration (and error, if any) when the
// returned func runs. Use with defer and a named error return:
//
//	defer obs.Time(ctx, "gmaps.DistanceMatrix")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	var reqID string
	if ctx != nil {
		reqID, _ = ctx.Value(RequestIDKey).(string)
	}

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s op=%s dur=%dms err=%v", reqID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("req_id=%s op=%s dur=%dms", reqID, name, dur.Milliseconds())
	}
}
