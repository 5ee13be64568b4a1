package requestdata

import (
	"context"
)

type requestDataKey struct{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData identifies the upstream caller for the duration of one
// request. The only callers are service workers (the WhatsApp frontend
// and the admin dashboard), authenticated by service token.
type RequestData struct {
	TokenString string
	WorkerID    string
}
