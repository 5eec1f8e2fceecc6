/*
Package acceptor implements the connection-acceptance side of the server.

Each accepted connection gets a worker goroutine (counted as created), a session ID and a
session registered with the registry for the connection's lifetime. Every command the
client sends runs as session work (counted as running) and draws a server-wide query ID.

The line protocol is intentionally small:

	HELLO <user>   handshake, answered with "OK <session-id>"
	PING           PONG
	WHOAMI         "<session-id> <user>"
	COUNT          number of live sessions
	SLEEP <ms>     waits, then OK; interrupted if the session is killed
	QUIT           BYE, then the connection is closed
*/
package acceptor
