package cerr

import (
	"context"
	"net/http"
)

// reply holds what a handler wants written back: a body or an error.
type reply struct {
	body any
	err  error
}

type replyKey struct{}

func replyFrom(ctx context.Context) *reply {
	r, _ := ctx.Value(replyKey{}).(*reply)
	return r
}

// SetJSONResponse sets the value encoded as the response body.
func SetJSONResponse(ctx context.Context, body any) {
	if r := replyFrom(ctx); r != nil {
		r.body = body
	}
}

// SetJSONError sets the error written instead of the body.
func SetJSONError(ctx context.Context, err error) {
	if r := replyFrom(ctx); r != nil {
		r.err = err
	}
}

// SetJSONResult sets err if it is non-nil and body otherwise.
func SetJSONResult(ctx context.Context, body any, err error) {
	if err != nil {
		SetJSONError(ctx, err)
		return
	}
	SetJSONResponse(ctx, body)
}

// NewJSONResponseChiMiddleware writes the body or error set by the handler
// as JSON once it returns. Handlers that set neither write their own
// response.
func NewJSONResponseChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rp := &reply{}
			ctx := context.WithValue(r.Context(), replyKey{}, rp)
			next.ServeHTTP(rw, r.WithContext(ctx))
			writeReply(ctx, rw, rp)
		})
	}
}
