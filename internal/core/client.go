package core

// Client is one connected participant as seen by the core layer.
// It carries no room state of its own; membership is owned by the Hub
// so that every mutation happens on the hub goroutine.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// done stops the command pump once the hub unregisters the client.
	done chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		done:     make(chan struct{}),
	}
}
