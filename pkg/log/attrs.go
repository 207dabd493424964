package log

import "log/slog"

func ScenarioID[T ~string](id T) slog.Attr {
	return slog.String("scenario_id", string(id))
}

func FlowID[T ~string](id T) slog.Attr {
	return slog.String("flow_id", string(id))
}

func SessionID[T ~string](id T) slog.Attr {
	return slog.String("session_id", string(id))
}

func ExecutionID[T ~string](id T) slog.Attr {
	return slog.String("execution_id", string(id))
}

func NodeID[T ~string](id T) slog.Attr {
	return slog.String("node_id", string(id))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func StepIndex(i int) slog.Attr {
	return slog.Int("step_index", i)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
