// Package logger builds configured log/slog loggers and provides typed
// attribute helpers shared across the SDK.
//
// Services default to a discard logger (NewDiscard) and accept a real one via
// their WithLogger options, keeping log output an explicit integration choice.
package logger
