package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// StudyID records the study identifier under the key "study_id".
func StudyID(id string) slog.Attr {
	return slog.String("study_id", id)
}

// ParticipantID records the participant identifier under the key "participant_id".
// If id is empty, it returns an empty Attr.
func ParticipantID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("participant_id", id)
}

// Subpopulation records a consent subpopulation GUID under the key "subpopulation".
func Subpopulation(guid string) slog.Attr {
	return slog.String("subpopulation", guid)
}

// RequestID records the request identifier under the key "request_id".
// If id is empty, it returns an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// UploadID records the upload identifier under the key "upload_id".
// If id is empty, it returns an empty Attr.
func UploadID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("upload_id", id)
}
