package errors

import "strconv"

// ERR is the error code carried by every *Error.
type ERR int32

//nolint:revive,stylecheck // error codes keep their enum style names
const (
	ERR_UNKNOWN            ERR = 0
	ERR_INVALID_ARGUMENT   ERR = 1
	ERR_THRESHOLD_EXCEEDED ERR = 2
	ERR_NOT_FOUND          ERR = 3
	ERR_PROCESSING         ERR = 4
	ERR_CONFIGURATION      ERR = 5
	ERR_CONTEXT            ERR = 6
	ERR_CONTEXT_CANCELED   ERR = 7
	ERR_ERROR              ERR = 9

	// network / transport
	ERR_NETWORK          ERR = 20
	ERR_NETWORK_TIMEOUT  ERR = 21
	ERR_INVALID_RESPONSE ERR = 22

	// bundle channel
	ERR_AUTHENTICATION      ERR = 30
	ERR_SUBMISSION_REJECTED ERR = 31
	ERR_STALE_STATE         ERR = 32

	// mining
	ERR_COMPUTE_INVARIANT  ERR = 40
	ERR_EXHAUSTED          ERR = 41
	ERR_SIGNING_CONSTRAINT ERR = 42

	// services and storage
	ERR_SERVICE_UNAVAILABLE ERR = 50
	ERR_SERVICE_ERROR       ERR = 51
	ERR_STORAGE_ERROR       ERR = 60
)

var ERR_name = map[int32]string{ //nolint:revive,stylecheck
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "THRESHOLD_EXCEEDED",
	3:  "NOT_FOUND",
	4:  "PROCESSING",
	5:  "CONFIGURATION",
	6:  "CONTEXT",
	7:  "CONTEXT_CANCELED",
	9:  "ERROR",
	20: "NETWORK",
	21: "NETWORK_TIMEOUT",
	22: "INVALID_RESPONSE",
	30: "AUTHENTICATION",
	31: "SUBMISSION_REJECTED",
	32: "STALE_STATE",
	40: "COMPUTE_INVARIANT",
	41: "EXHAUSTED",
	42: "SIGNING_CONSTRAINT",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_ERROR",
	60: "STORAGE_ERROR",
}

// Enum returns the symbolic name of the code.
func (e ERR) Enum() string {
	if name, ok := ERR_name[int32(e)]; ok {
		return name
	}

	return "ERR_" + strconv.Itoa(int(e))
}

func (e ERR) String() string {
	return e.Enum()
}
