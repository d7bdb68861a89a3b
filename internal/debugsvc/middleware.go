package debugsvc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/AdGuardCB/internal/agdhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// middleware wraps h with the request logging at lvl and the panic recovery.
// The logger with the request attributes is put into the request context.
func (svc *Service) middleware(h http.Handler, lvl slog.Level) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(httphdr.Server, agdhttp.UserAgent())

		l := svc.logger.With(
			"raddr", r.RemoteAddr,
			"method", r.Method,
			"request_uri", r.RequestURI,
		)

		ctx := slogutil.ContextWithLogger(r.Context(), l)
		r = r.WithContext(ctx)

		rec := &statusRecorder{
			ResponseWriter: w,
			code:           http.StatusOK,
		}

		start := time.Now()
		l.Log(ctx, lvl, "started")
		defer func() {
			if v := recover(); v != nil {
				l.ErrorContext(ctx, "handler panic", slogutil.KeyError, errors.FromRecovered(v))
				slogutil.PrintStack(ctx, l, slog.LevelError)

				if !rec.written {
					http.Error(rec, "internal error", http.StatusInternalServerError)
				}
			}

			l.Log(ctx, lvl, "finished", "code", rec.code, "elapsed", time.Since(start))
		}()

		h.ServeHTTP(rec, r)
	}

	return http.HandlerFunc(f)
}

// statusRecorder is an [http.ResponseWriter] that remembers the status code of
// the response.
type statusRecorder struct {
	http.ResponseWriter

	code    int
	written bool
}

// type check
var _ http.ResponseWriter = (*statusRecorder)(nil)

// WriteHeader implements [http.ResponseWriter] for *statusRecorder.
func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.written = true

	w.ResponseWriter.WriteHeader(code)
}

// Write implements [http.ResponseWriter] for *statusRecorder.
func (w *statusRecorder) Write(b []byte) (n int, err error) {
	w.written = true

	return w.ResponseWriter.Write(b)
}
