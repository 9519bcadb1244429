package api

import "sync/atomic"

var current atomic.Pointer[Client]

// Register makes the client available through Current.
// Nothing in this module requires a registered client.
func Register(client *Client) {
	current.Store(client)
}

// Current returns the last registered client, if any.
func Current() (*Client, bool) {
	client := current.Load()
	return client, client != nil
}
