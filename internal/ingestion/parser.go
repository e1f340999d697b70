package ingestion

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/fault"
	"encoding/json"
	"fmt"
	"strings"
)

// CommandTypeFromSubject extracts the command type token from a subject
// under CommandSubjectPrefix. It returns "" for subjects outside it.
func CommandTypeFromSubject(subject string) (string, error) {
	if !strings.HasPrefix(subject, CommandSubjectPrefix) {
		return "", nil
	}
	name := strings.TrimPrefix(subject, CommandSubjectPrefix)
	if name == "" || strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: subject %q", fault.ErrUnknownCommand, subject)
	}
	return name, nil
}

// ParseRawCommand decodes a NATS message into a typed command. The type
// comes from the subject when it has one, else from the payload. A payload
// without timestamp_us is stamped with the receive time.
func ParseRawCommand(raw RawCommand) (command.Command, error) {
	var w command.Wire
	if err := json.Unmarshal(raw.Data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrPayloadParseFail, err)
	}

	typeName, err := CommandTypeFromSubject(raw.Subject)
	if err != nil {
		return nil, err
	}
	if typeName != "" {
		w.Type = typeName
	}
	if w.TimestampUs == 0 && !raw.Received.IsZero() {
		w.TimestampUs = raw.Received.UnixMicro()
	}

	return w.Command()
}
