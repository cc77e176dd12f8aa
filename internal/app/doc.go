// Package app provides application services that sit behind the HTTP surface.
//
// BoardService serves the aggregated board snapshot with a short-lived cache that placement
// hooks invalidate.
package app
