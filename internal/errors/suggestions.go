package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	ErrAlarmNotFound:    "Use 'timely alarms list' to see known alarms, or 'timely alarms sync' to refresh them.",
	ErrNotAuthenticated: "Run 'timely login' first.",
	ErrSessionExpired:   "Your session expired. Run 'timely login' again.",
	ErrTransport:        "Check your network connection and the configured api_url ('timely config').",
	ErrInvalidTime:      "Use 24-hour HH:MM, for example 07:30 or 22:05.",
	ErrInvalidDays:      "Use names like mon,wed,fri, numbers 0-6 (0 = Sunday), or weekdays/weekends/daily.",
	ErrMissingDeviceID:  "The local database may be unwritable. Check permissions of the timely data directory.",
	ErrPermissionDenied: "Grant the alarm scheduling permission and run 'timely alarms sync'.",
	ErrDiskFull:         "Free up disk space and try again. Alarms are safe on the server.",
}

// GetSuggestion returns a suggestion for an error, if available.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}
	return ""
}

// Format formats an error with its suggestion on a second line.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if suggestion := GetSuggestion(err); suggestion != "" {
		msg += "\n" + suggestion
	}
	return msg
}
