package hypervisor

import "fmt"

// Status is one of the closed set of 3-digit reply codes from spec.md §6.
type Status int

const (
	StatusOK           Status = 100
	StatusInfo         Status = 101
	StatusDebug        Status = 102
	StatusParseError   Status = 200
	StatusUnknownModule Status = 201
	StatusUnknownCommand Status = 202
	StatusBadParamCount Status = 203
	StatusInvalidParam  Status = 204
	StatusBinding       Status = 205
	StatusCreate        Status = 206
	StatusDelete        Status = 207
	StatusUnknownObject Status = 208
	StatusStart         Status = 209
	StatusStop          Status = 210
	StatusFile          Status = 211
	StatusBadObject     Status = 212
	StatusRename        Status = 213
	StatusNotFound      Status = 214
	StatusUnspecified   Status = 215
)

// replyLine formats one reply line: a 3-digit status, a continuation ('-')
// or terminal (' ') separator, the message, and a trailing CRLF.
func replyLine(status Status, continuation bool, msg string) string {
	sep := " "
	if continuation {
		sep = "-"
	}
	return fmt.Sprintf("%03d%s%s\r\n", status, sep, msg)
}

// Action tells the control server what to do with the connection/server
// after writing a Reply, for the hypervisor module's close/stop commands.
type Action int

const (
	ActionNone Action = iota
	ActionCloseConn
	ActionStopServer
)

// Reply is a full control-plane response: zero or more continuation lines
// followed by exactly one terminal line, all sharing the same status.
type Reply struct {
	Status Status
	Lines  []string
	Action Action
}

// OK builds a single-line 100 OK reply.
func OK(msg string) Reply { return Reply{Status: StatusOK, Lines: []string{msg}} }

// Err builds a single-line error reply at the given status.
func Err(status Status, msg string) Reply { return Reply{Status: status, Lines: []string{msg}} }

// Multi builds a multi-line reply sharing one status, e.g. for
// module_list/cmd_list/show.
func Multi(status Status, lines ...string) Reply { return Reply{Status: status, Lines: lines} }

// Encode renders r as the wire bytes to write to the client connection.
func (r Reply) Encode() string {
	if len(r.Lines) == 0 {
		return replyLine(r.Status, false, "")
	}
	var b []byte
	for i, line := range r.Lines {
		last := i == len(r.Lines)-1
		b = append(b, []byte(replyLine(r.Status, !last, line))...)
	}
	return string(b)
}
