package mid

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/calderaledger/caldera/business/web/errs"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/web"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform
// way. Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			if err := handler(ctx, w, r); err != nil {
				log.Errorw("ERROR", "traceid", v.TraceID, "message", err)

				var er errs.Response
				var status int
				switch {
				case errs.IsTrusted(err):
					trusted := errs.GetTrusted(err)
					er = errs.Response{
						Error:  trusted.Error(),
						Reason: rejectReason(trusted.Err),
					}
					status = trusted.Status

				default:
					er = errs.Response{
						Error: http.StatusText(http.StatusInternalServerError),
					}
					status = http.StatusInternalServerError
				}

				if err := web.Respond(ctx, w, er, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shut down the service.
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

// rejectReason extracts the consensus rejection reason from a validation
// error. Errors without one report no reason.
func rejectReason(err error) string {
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}
