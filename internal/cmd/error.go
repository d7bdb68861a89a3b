package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// reportPanics reports all panics in Main using the Sentry client, logs them,
// and repanics.  It should be called in a defer.
func reportPanics(ctx context.Context, errColl errcoll.Interface, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	err := errors.FromRecovered(v)
	l.ErrorContext(ctx, "recovered from panic", slogutil.KeyError, err)
	slogutil.PrintStack(ctx, l, slog.LevelError)

	errColl.Collect(ctx, fmt.Errorf("panic in main: %w", err))
	if f, ok := errColl.(errcoll.ErrorFlushCollector); ok {
		f.Flush()
	}

	panic(v)
}
