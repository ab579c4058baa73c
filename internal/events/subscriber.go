package events

// Message is a raw event as received from the bus. Sector is set when the
// transport carries it outside the payload.
type Message struct {
	Topic  string
	Sector string
	Data   []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event messages on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
