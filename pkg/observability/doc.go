/*
Package observability exposes the session registry to Prometheus.

The Collector reads the registry at scrape time, so it never keeps a copy of the counters
and never takes the registry lock: every value it reports is an independent atomic read.
*/
package observability
