// Package handlers provides the bundled handler factories.
//
// Each factory claims endpoints of one kind and returns nil for everything
// else, so factories can be listed in any order:
//
//	static       fixed status, headers and body
//	redirect     Location: target with a 3xx status
//	proxy        reverse proxy to target
//	passthrough  hands the request to the downstream continuation
//
// A Registry maps kind names to factory constructors and builds the ordered
// factory list from configuration.
package handlers
