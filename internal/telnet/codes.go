// Package telnet holds the RFC 854 control codes, the option-refusal
// negotiator, and the error kinds shared by the transport and session layers.
package telnet

import "strconv"

// Control bytes recognised on the wire.
const (
	NUL  byte = 0
	DC1  byte = 17
	WILL byte = 251
	WONT byte = 252
	DO   byte = 253
	DONT byte = 254
	IAC  byte = 255
)

// Option codes seen often enough to be worth naming in traces.
const (
	OptBinary      byte = 0
	OptEcho        byte = 1
	OptSuppressGA  byte = 3
	OptStatus      byte = 5
	OptTimingMark  byte = 6
	OptTerminal    byte = 24
	OptNAWS        byte = 31
	OptTermSpeed   byte = 32
	OptFlowControl byte = 33
	OptLinemode    byte = 34
	OptXDisplay    byte = 35
	OptEnviron     byte = 36
	OptNewEnviron  byte = 39
	OptCharset     byte = 42
)

var verbNames = map[byte]string{
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

var optionNames = map[byte]string{
	OptBinary:      "BINARY",
	OptEcho:        "ECHO",
	OptSuppressGA:  "SUPPRESS-GO-AHEAD",
	OptStatus:      "STATUS",
	OptTimingMark:  "TIMING-MARK",
	OptTerminal:    "TERMINAL-TYPE",
	OptNAWS:        "NAWS",
	OptTermSpeed:   "TERMINAL-SPEED",
	OptFlowControl: "TOGGLE-FLOW-CONTROL",
	OptLinemode:    "LINEMODE",
	OptXDisplay:    "X-DISPLAY-LOCATION",
	OptEnviron:     "ENVIRON",
	OptNewEnviron:  "NEW-ENVIRON",
	OptCharset:     "CHARSET",
}

// VerbName returns the mnemonic for a negotiation verb, or its decimal value.
func VerbName(b byte) string {
	if name, ok := verbNames[b]; ok {
		return name
	}
	return strconv.Itoa(int(b))
}

// OptionName returns the mnemonic for an option code, or its decimal value.
func OptionName(b byte) string {
	if name, ok := optionNames[b]; ok {
		return name
	}
	return strconv.Itoa(int(b))
}
