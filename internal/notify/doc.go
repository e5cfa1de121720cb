// Package notify carries operator notifications (errors and confirmations)
// between the parts of the system that produce them and the places that show
// them: the console status line, the service log, and websocket subscribers.
package notify
