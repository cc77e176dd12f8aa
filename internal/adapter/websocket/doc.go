// Package websocket admits websocket upgrades: origin allow-listing, connection caps and
// upgrade rate limiting.
package websocket
