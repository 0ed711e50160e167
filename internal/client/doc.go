// Package client is a typed HTTP client for the statekeeper API.
//
// # Usage
//
//	c := client.New("http://127.0.0.1:7420", client.WithToken(token))
//	settings, err := c.GetSettings(ctx)
//	cmd, err := c.SaveCommand(ctx, prefs.VoiceCommand{Transcript: "scroll down"})
//
// Non-2xx responses are returned as *APIError carrying the status code and
// the server's user-facing message.
package client
