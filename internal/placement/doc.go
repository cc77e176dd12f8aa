// Package placement turns inbound client frames into board changes.
//
// Each frame is parsed, routed to the clear path (admins only) or the pixel path, validated,
// checked against the cooldown gate, persisted and finally broadcast. Rejections are reported
// to the sending connection only and never mutate state.
package placement
