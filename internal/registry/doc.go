// Package registry implements the endpoint registry shared by the TCP and CAN
// contexts.
//
// Identity is always resolved through the descriptor table, never from the
// numeric value of a descriptor. Erasing an endpoint unregisters and closes
// every handle it owns before its slot can be handed out again, so a
// descriptor number reused by the OS can never be attributed to the endpoint
// that previously held it.
package registry
