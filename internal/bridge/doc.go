// Package bridge is the HTTP client for the IDE bridge, which serves
// exact-match symbol lookups from the IDE's index.
package bridge
