// Package control carries the signal protocol between the interactive loop
// and its background producers, and the mediator that dispatches it.
package control

// Signal is one unit of work for the interactive loop. Exactly one consumer
// drains signals; producers hand them off and never touch them again.
type Signal interface {
	signal()
}

// Incoming is a chat message delivered from the log.
type Incoming struct {
	From string
	Text string
}

// Info is a notice presented to the user as a dismissible dialog.
type Info struct {
	Text string
}

// ConnectTo asks the mediator to spawn the transport loops for a chat.
// Empty fields fall back to defaults.
type ConnectTo struct {
	Username string
	ChatID   string
}

// Outgoing asks the mediator to publish text as the local participant.
type Outgoing struct {
	Text string
}

// Submit asks the mediator to read-and-clear the input buffer and turn it
// into an Outgoing signal.
type Submit struct{}

// Quit stops the interactive loop.
type Quit struct{}

func (Incoming) signal()  {}
func (Info) signal()      {}
func (ConnectTo) signal() {}
func (Outgoing) signal()  {}
func (Submit) signal()    {}
func (Quit) signal()      {}
