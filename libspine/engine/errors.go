package engine

import (
	"errors"
	"fmt"

	"spinekv/libspine/engine/storage"
	"spinekv/libspine/engine/storage/zset"
)

// CommandError is an error whose message is sent to the client as is
type CommandError struct {
	Message string
}

// Error implements the error interface
func (e *CommandError) Error() string {
	return e.Message
}

// Errorf creates a CommandError
func Errorf(format string, args ...interface{}) error {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}

var (
	ErrSyntax       = &CommandError{Message: "ERR syntax error"}
	ErrNotInteger   = &CommandError{Message: "ERR value is not an integer or out of range"}
	ErrDBIndex      = &CommandError{Message: "ERR DB index is out of range"}
	ErrTimeout      = &CommandError{Message: "ERR timeout is not a float or out of range"}
	ErrNegativeTime = &CommandError{Message: "ERR timeout is negative"}
	ErrSameObject   = &CommandError{Message: "ERR source and destination objects are the same"}
)

// sentinels from the storage layer whose text is already a reply
var replyErrors = []error{
	storage.ErrWrongType,
	storage.ErrNoSuchKey,
	zset.ErrNotFloat,
	zset.ErrInvalidRange,
	zset.ErrScoreNaN,
}

// ReplyError returns the message to send for err, or false when err is not a
// client-facing error.
func ReplyError(err error) (string, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Message, true
	}
	for _, sentinel := range replyErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

// unknownCommand formats the reply for a command that is not registered
func unknownCommand(name string, args []string) error {
	var quoted string
	for _, a := range args {
		quoted += fmt.Sprintf("'%s' ", a)
	}
	return Errorf("ERR unknown command '%s', with args beginning with: %s", name, quoted)
}

func wrongArity(name string) error {
	return Errorf("ERR wrong number of arguments for '%s' command", name)
}
