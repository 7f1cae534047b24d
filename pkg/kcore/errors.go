package kcore

import "fmt"

// Status models sys_call's return codes. Errors from the syscall package
// are private, so we define our own to match the errno — same idiom the
// teacher's pkg/linux/tcpinfo.go uses for EAGAIN/EINVAL/ENOENT, extended
// with the numeric code the ABI table in spec.md §6 documents.
type Status int

func (s Status) Error() string {
	if msg, ok := statusText[s]; ok {
		return msg
	}
	return fmt.Sprintf("kcore: status %d", int(s))
}

// Code returns the ABI status code, a small negative integer.
func (s Status) Code() int { return int(s) }

const (
	OK          Status = 0
	ECALLDENIED Status = -1
	EBADSRCDST  Status = -2
	EDEADDST    Status = -3
	EFAULT      Status = -4
	ELOCKED     Status = -5
	ENOTREADY   Status = -6
	ENOSPC      Status = -7
	EBADCALL    Status = -8
)

var statusText = map[Status]string{
	ECALLDENIED: "call denied: function not permitted or peer not in send mask",
	EBADSRCDST:  "invalid source/destination process number",
	EDEADDST:    "destination process slot is empty",
	EFAULT:      "message buffer outside caller's address space",
	ELOCKED:     "send would create a deadlock cycle",
	ENOTREADY:   "non-blocking call found peer not ready",
	ENOSPC:      "notification buffer pool exhausted",
	EBADCALL:    "unknown system call number",
}
