package ctxutil

import "context"

type requestDataKey struct{}

// RequestData carries the authenticated caller for the current request.
type RequestData struct {
	ContributorID string
	TokenString   string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(Default(ctx), requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// ContributorID returns the authenticated caller id or "".
func ContributorID(ctx context.Context) string {
	rd := GetRequestData(ctx)
	if rd == nil {
		return ""
	}
	return rd.ContributorID
}
