// Package instrument subscribes to a page's devtools event streams and
// converts them into browser events for the monitoring pipeline.
package instrument

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browseriq/internal/logging"
	"browseriq/internal/model"
)

// ErrUnavailable means the page handle cannot provide devtools events. The
// orchestrator reacts by seeding the synthetic fallback sequence.
var ErrUnavailable = errors.New("devtools instrumentation not available")

// Stream is one live event subscription. Detach stops it; events stop
// flowing shortly after, though a handful already in flight may still reach
// the emit callback.
type Stream struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Attach subscribes to console, exception, and network events on the page
// and forwards them to emit as model events. The subscription lives until
// ctx is cancelled or Detach is called.
func Attach(ctx context.Context, page *rod.Page, sessionID string, emit func(model.BrowserEvent)) (*Stream, error) {
	if page == nil {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{cancel: cancel, done: make(chan struct{})}

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			emit(model.NewConsoleEvent(sessionID, consoleLevel(ev.Type), stringifyConsoleArgs(ev.Args), "console"))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			text, stack := exceptionDetails(ev.ExceptionDetails)
			emit(model.NewScriptExceptionEvent(sessionID, text, stack))
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			var duration time.Duration
			if ev.Response.Timing != nil {
				duration = time.Duration(ev.Response.Timing.ReceiveHeadersEnd * float64(time.Millisecond))
			}
			emit(model.NewNetworkEvent(sessionID, ev.Response.URL, ev.Response.Status, duration))
		},
		func(ev *proto.NetworkLoadingFailed) {
			emit(model.NewNetworkFailureEvent(sessionID, string(ev.RequestID), ev.ErrorText))
		},
	)

	go func() {
		defer close(s.done)
		wait()
	}()

	logging.Events("attached devtools instrumentation for session %s", sessionID)
	return s, nil
}

// Detach cancels the subscription and waits for the event loop to drain.
// Safe to call more than once.
func (s *Stream) Detach() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func consoleLevel(t proto.RuntimeConsoleAPICalledType) string {
	switch t {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		return model.LevelError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		return model.LevelWarn
	default:
		return model.LevelInfo
	}
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func exceptionDetails(details *proto.RuntimeExceptionDetails) (text, stack string) {
	if details == nil {
		return "Uncaught exception", ""
	}
	text = details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		text = details.Exception.Description
	}
	if details.StackTrace != nil {
		var b strings.Builder
		for _, frame := range details.StackTrace.CallFrames {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString("at ")
			if frame.FunctionName != "" {
				b.WriteString(frame.FunctionName)
				b.WriteString(" ")
			}
			b.WriteString("(")
			b.WriteString(frame.URL)
			b.WriteString(")")
		}
		stack = b.String()
	}
	return text, stack
}
