package errors

import stdErrors "errors"

// DumpInfo carries the unwrapped error chain for structured logging.
type DumpInfo struct {
	TopMessage string
	Code       string
	Chain      []string
}

// Dump walks the error chain and returns log-friendly metadata.
func Dump(err error) DumpInfo {
	info := DumpInfo{}
	if err == nil {
		return info
	}
	info.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		info.Code = string(typed.Code())
	}
	for current := err; current != nil; current = stdErrors.Unwrap(current) {
		info.Chain = append(info.Chain, current.Error())
	}
	return info
}
