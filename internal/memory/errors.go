package memory

import "fmt"

// Code identifies why a memory operation was refused.
type Code string

const (
	CodeCapacityFull Code = "CAPACITY_FULL"
	CodeEntryTooLong Code = "ENTRY_TOO_LONG"
	CodeDuplicateKey Code = "DUPLICATE_KEY"
	CodeKeyNotFound  Code = "KEY_NOT_FOUND"
	CodeInvalidTier  Code = "INVALID_TIER"
)

// Error is the error form of a failed Result. Two errors are equal under
// errors.Is when their codes match, so callers can test against the sentinels.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrCapacityFull = &Error{Code: CodeCapacityFull, Message: "memory is full"}
	ErrEntryTooLong = &Error{Code: CodeEntryTooLong, Message: "entry is too long"}
	ErrDuplicateKey = &Error{Code: CodeDuplicateKey, Message: "key name must be unique"}
	ErrKeyNotFound  = &Error{Code: CodeKeyNotFound, Message: "key not found"}
	ErrInvalidTier  = &Error{Code: CodeInvalidTier, Message: "unknown memory tier"}
)

func capacityFull(t Tier) Result {
	return failure(CodeCapacityFull, fmt.Sprintf("%s memory is full. Please clear some entries.", t.title()))
}

func entryTooLong(max int) Result {
	return failure(CodeEntryTooLong, fmt.Sprintf("Entry is too long. Please shorten the entry to less than %d characters.", max))
}

func duplicateKey() Result {
	return failure(CodeDuplicateKey, "Key name must be unique.")
}

func keyNotFound() Result {
	return failure(CodeKeyNotFound, "Key not found.")
}

func invalidTier(t Tier) Result {
	return failure(CodeInvalidTier, fmt.Sprintf("Unknown memory tier %q.", string(t)))
}
