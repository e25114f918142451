package telnet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Negotiator answers every option offer with a refusal. It never enables
// anything, so the session stays in plain NVT line mode.
type Negotiator struct {
	w      io.Writer
	logger *slog.Logger
}

// NewNegotiator creates a negotiator that writes its replies to w.
func NewNegotiator(w io.Writer, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{w: w, logger: logger}
}

// Refusal returns the three-byte reply for a received verb and option:
// DO/DONT are answered WONT, WILL/WONT are answered DONT.
func Refusal(verb, option byte) ([]byte, error) {
	switch verb {
	case DO, DONT:
		return []byte{IAC, WONT, option}, nil
	case WILL, WONT:
		return []byte{IAC, DONT, option}, nil
	default:
		return nil, &ProtocolError{Verb: verb}
	}
}

// Handle consumes the rest of a control sequence whose IAC has already been
// read from r, and writes the refusal. Nothing it reads is application data.
func (n *Negotiator) Handle(r io.ByteReader) error {
	verb, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read negotiation verb: %w", err)
	}

	switch verb {
	case DO, DONT, WILL, WONT:
	default:
		return &ProtocolError{Verb: verb}
	}

	option, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read negotiation option: %w", err)
	}
	n.trace("recv", verb, option)

	reply, err := Refusal(verb, option)
	if err != nil {
		return err
	}
	if _, err := n.w.Write(reply); err != nil {
		return fmt.Errorf("send refusal for %s: %w", OptionName(option), err)
	}
	n.trace("send", reply[1], option)

	return nil
}

func (n *Negotiator) trace(dir string, verb, option byte) {
	n.logger.LogAttrs(context.Background(), slog.LevelDebug, "telnet negotiation",
		slog.String("dir", dir),
		slog.String("verb", VerbName(verb)),
		slog.String("option", OptionName(option)),
	)
}
