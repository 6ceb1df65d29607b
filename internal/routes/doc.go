// Package routes provides the bundled dispatchers and builds the dispatcher
// chain from configuration.
//
// Dispatchers either make no decision, select an endpoint, or short-circuit
// the request with their own handler:
//
//	health       short-circuits GET/HEAD on a fixed path with 200
//	auth         short-circuits with 401 when the API key is missing or wrong
//	maintenance  short-circuits everything with 503 while enabled
//	table        selects configured endpoints by chi route pattern
//	store        selects endpoints from the route store
//	webhook      asks a remote decision service
package routes
