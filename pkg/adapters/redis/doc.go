// Package redis mirrors the local session registry into Redis so that several
// roster processes can see each other's sessions.
//
// Each process (replica) writes one hash of session id to Info JSON and keeps it
// alive with a TTL. An index ZSET scores every replica by its expiry time; List
// prunes expired replicas from the index before reading.
package redis
