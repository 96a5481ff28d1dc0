package temporal

import (
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// ZerologAdapter lets the Temporal SDK log through zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

var (
	_ log.Logger     = (*ZerologAdapter)(nil)
	_ log.WithLogger = (*ZerologAdapter)(nil)
)

func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{
		logger: logger.With().Str("component", "temporal-sdk").Logger(),
	}
}

func withKeyvals(ctx zerolog.Context, keyvals []interface{}) zerolog.Context {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return ctx
}

func (a *ZerologAdapter) log(event *zerolog.Event, msg string, keyvals []interface{}) {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		event = event.Interface(key, keyvals[i+1])
	}
	event.Msg(msg)
}

func (a *ZerologAdapter) Debug(msg string, keyvals ...interface{}) {
	a.log(a.logger.Debug(), msg, keyvals)
}

func (a *ZerologAdapter) Info(msg string, keyvals ...interface{}) {
	a.log(a.logger.Info(), msg, keyvals)
}

func (a *ZerologAdapter) Warn(msg string, keyvals ...interface{}) {
	a.log(a.logger.Warn(), msg, keyvals)
}

func (a *ZerologAdapter) Error(msg string, keyvals ...interface{}) {
	a.log(a.logger.Error(), msg, keyvals)
}

// With returns a child adapter carrying keyvals on every entry.
func (a *ZerologAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZerologAdapter{logger: withKeyvals(a.logger.With(), keyvals).Logger()}
}
