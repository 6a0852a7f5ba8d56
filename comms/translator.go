package comms

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lovense plain text commands arrive as binary frames: a command word,
// an optional ':' separated argument and a ';' terminator, e.g. "Vibrate:10;".
const (
	CMD_TERMINATOR = ";"
	CMD_SEPARATOR  = ":"

	// Vibrate levels are integers on a 0-20 scale.
	VIBRATE_LEVEL_MAX = 20
)

var (
	ERR_BAD_ENCODING  = errors.New("payload is not valid UTF-8")
	ERR_UNRECOGNIZED  = errors.New("message is not a terminated plain text command")
	ERR_UNHANDLED     = errors.New("unhandled command")
	ERR_INVALID_LEVEL = errors.New("vibrate level out of range")
	ERR_INVALID_VALUE = errors.New("vibrate value is not an integer")
)

// Command is the result of translating a single upstream frame.
type Command struct {
	// Intensity is the normalized pump drive level in [0, 1].
	Intensity float64

	// Ignored marks commands that are understood but produce no output
	// (GetBattery, DeviceType).
	Ignored bool
}

// ParseCommand decodes a raw WSDM binary payload as a Lovense plain text
// command and maps it to a normalized pump intensity.
// Stop is equivalent to Vibrate:0.
func ParseCommand(payload []byte) (cmd Command, err error) {
	if !utf8.Valid(payload) {
		return cmd, ERR_BAD_ENCODING
	}
	msg := string(payload)
	if !strings.HasSuffix(msg, CMD_TERMINATOR) {
		return cmd, ERR_UNRECOGNIZED
	}

	parts := strings.Split(strings.TrimSuffix(msg, CMD_TERMINATOR), CMD_SEPARATOR)
	command := strings.ToLower(strings.TrimSpace(parts[0]))
	var value string
	if len(parts) > 1 {
		value = strings.TrimSpace(parts[1])
	}

	switch command {
	case "vibrate":
		level, aerr := strconv.Atoi(value)
		if aerr != nil {
			return cmd, ERR_INVALID_VALUE
		}
		if level < 0 || level > VIBRATE_LEVEL_MAX {
			return cmd, ERR_INVALID_LEVEL
		}
		cmd.Intensity = float64(level) / float64(VIBRATE_LEVEL_MAX)
		return cmd, nil

	case "stop":
		cmd.Intensity = 0
		return cmd, nil

	case "getbattery", "devicetype":
		// devices answer these over BLE notifications we cannot replicate here
		cmd.Ignored = true
		return cmd, nil

	default:
		return cmd, ERR_UNHANDLED
	}
}
