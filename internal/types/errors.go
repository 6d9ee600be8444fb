package types

import "errors"

// Sentinel errors shared by the store, graph engine, lifecycle and dispatcher.
// Callers wrap them with context via fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	ErrNotFound                 = errors.New("not found")
	ErrCycleDetected            = errors.New("dependency cycle detected")
	ErrSelfDependency           = errors.New("issue cannot depend on itself")
	ErrGateValidationFailed     = errors.New("gate validation failed")
	ErrAlreadyAssigned          = errors.New("issue already assigned")
	ErrConcurrentClaim          = errors.New("issue was modified by a concurrent claim")
	ErrAmbiguousID              = errors.New("ambiguous issue id")
	ErrPrefixTooShort           = errors.New("issue id prefix too short")
	ErrInvalidState             = errors.New("invalid state transition")
	ErrUniqueNamespaceViolation = errors.New("unique label namespace violation")
	ErrCapacityExceeded         = errors.New("worker capacity exceeded")
	ErrQuerySyntax              = errors.New("query syntax error")
)

// MinShortIDLength is the shortest prefix accepted for short-id resolution.
const MinShortIDLength = 4

var errorCodes = []struct {
	err  error
	code string
}{
	// Order matters: a self-dependency also wraps ErrCycleDetected.
	{ErrSelfDependency, "SELF_DEPENDENCY"},
	{ErrCycleDetected, "CYCLE_DETECTED"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrGateValidationFailed, "GATE_VALIDATION_FAILED"},
	{ErrAlreadyAssigned, "ALREADY_ASSIGNED"},
	{ErrConcurrentClaim, "CONCURRENT_CLAIM"},
	{ErrAmbiguousID, "AMBIGUOUS_ID"},
	{ErrPrefixTooShort, "PREFIX_TOO_SHORT"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrUniqueNamespaceViolation, "UNIQUE_NAMESPACE_VIOLATION"},
	{ErrCapacityExceeded, "CAPACITY_EXCEEDED"},
	{ErrQuerySyntax, "QUERY_SYNTAX"},
}

// ErrorCode returns the stable machine-readable code for err, or "" when err
// does not wrap a known sentinel.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}
