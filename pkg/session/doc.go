/*
Package session implements the execution context owned by a client connection.

A Session is created by connection-acceptance code, registered with the registry for as
long as it is live and removed by the same owner on teardown. Administrative code may
describe or kill it concurrently, so its mutable fields are guarded by its own lock,
independent of the registry lock.
*/
package session
