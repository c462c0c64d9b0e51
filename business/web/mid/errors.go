package mid

import (
	"context"
	"net/http"

	"github.com/overlaychain/node/business/web/errs"
	"github.com/overlaychain/node/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a
// uniform way. Client errors (status < 500) are logged at Warn level,
// unexpected errors (status >= 500) at Error level.
func Errors(log *zap.SugaredLogger) web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			if err := handler(ctx, w, r); err != nil {
				status := http.StatusInternalServerError
				resp := errs.Response{Error: err.Error()}

				switch {
				case errs.IsTrusted(err):
					trusted := errs.GetTrusted(err)
					status = trusted.Status
					resp.Error = trusted.Error()

				case asFieldErrors(err, &resp):
					status = http.StatusBadRequest

				case web.IsShutdown(err):
					status = http.StatusInternalServerError
				}

				if status >= http.StatusInternalServerError {
					log.Errorw("request error", "traceid", v.TraceID, "ERROR", err)
				} else {
					log.Warnw("request error", "traceid", v.TraceID, "ERROR", err)
				}

				if err := web.Respond(ctx, w, resp, status); err != nil {
					return err
				}

				if web.IsShutdown(err) {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}

func asFieldErrors(err error, resp *errs.Response) bool {
	fe, ok := err.(*web.FieldErrors)
	if !ok {
		return false
	}

	resp.Error = "field validation error"
	resp.Fields = fe.Fields
	return true
}
