package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerScope = "github.com/utafrali/AddressBook/pkg/database"

// db.system values.
const (
	SystemPostgreSQL = "postgresql"
	SystemSQLite     = "sqlite"
)

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging makes every traced statement slower than threshold log
// a warning on logger. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

// TraceQuery is TraceQuerySystem for PostgreSQL.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	return TraceQuerySystem(ctx, SystemPostgreSQL, operation, statement)
}

// TraceQuerySystem opens a client span named "db.<operation>" and returns the
// function that ends it:
//
//	ctx, end := database.TraceQuery(ctx, "GetAddress", query)
//	defer func() { end(err) }()
func TraceQuerySystem(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerScope).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemKey.String(system),
			semconv.DBOperation(operation),
			semconv.DBStatement(statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		slow := slowQueries.Load()
		if slow == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < slow.threshold {
			return
		}
		attrs := []slog.Attr{
			slog.String("db_system", system),
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		slow.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
	}
}
