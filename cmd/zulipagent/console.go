package main

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// consoleTransport writes outbound messages to stdout, one line per message,
// prefixed with the stream/topic they address.
type consoleTransport struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *consoleTransport) SendMessage(_ context.Context, stream, topicName, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s/%s] %s\n", stream, topicName, text)
	return err
}
