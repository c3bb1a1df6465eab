package audit

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the time format used for audit event timestamps.
const TimestampFormat = time.RFC3339Nano

// eventJSON is the wire form of AuditEvent. Optional strings are pointers so
// empty values are omitted rather than written as "".
type eventJSON struct {
	Timestamp       string            `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      *string           `json:"sourcePath,omitempty"`
	DestinationPath *string           `json:"destinationPath,omitempty"`
	ReasonCode      *ReasonCode       `json:"reasonCode,omitempty"`
	FileIdentity    *FileIdentity     `json:"fileIdentity,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func optional[T ~string](v T) *T {
	if v == "" {
		return nil
	}
	return &v
}

func deref[T ~string](p *T) T {
	if p == nil {
		return ""
	}
	return *p
}

// MarshalJSON implements json.Marshaler.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Timestamp:       e.Timestamp.UTC().Format(TimestampFormat),
		RunID:           e.RunID,
		EventType:       e.EventType,
		Status:          e.Status,
		SourcePath:      optional(e.SourcePath),
		DestinationPath: optional(e.DestinationPath),
		ReasonCode:      optional(e.ReasonCode),
		FileIdentity:    e.FileIdentity,
		ErrorDetails:    e.ErrorDetails,
		Metadata:        e.Metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(TimestampFormat, ej.Timestamp)
	if err != nil {
		return err
	}

	*e = AuditEvent{
		Timestamp:       t,
		RunID:           ej.RunID,
		EventType:       ej.EventType,
		Status:          ej.Status,
		SourcePath:      deref(ej.SourcePath),
		DestinationPath: deref(ej.DestinationPath),
		ReasonCode:      deref(ej.ReasonCode),
		FileIdentity:    ej.FileIdentity,
		ErrorDetails:    ej.ErrorDetails,
		Metadata:        ej.Metadata,
	}
	return nil
}

// UnmarshalJSONLine decodes one line of the log.
func UnmarshalJSONLine(data []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
