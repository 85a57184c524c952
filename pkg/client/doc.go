// Package client implements the server side of client connections.
//
// A Session tracks the devices a client has opened, the access granted for
// each and how data is delivered:
//
//	PUSH_ALL    every round on the rate timer, all data
//	PUSH_NEW    every round on the rate timer, changed data only (default)
//	PULL_ALL    one round per DATA request, all data
//	PULL_NEW    one round per DATA request, changed data only
//	PUSH_ASYNC  changed data as soon as a driver signals, SYNCH on the timer
//
// Every round ends with a SYNCH message. Driver replies are forwarded as soon
// as the scheduler sees them; DATA that drivers publish into the session
// outbox waits for the next round.
//
// Each session owns a writer goroutine that is the only sender on its
// connection. The scheduler and driver listeners hand frames or flags to it
// and never wait for the client; a failed write closes the session.
//
// Requests addressed to the player interface are answered by the session
// itself; requests to other devices go to the driver's in-queue with the
// session outbox as the reply queue.
package client
