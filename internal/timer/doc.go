// Package timer wraps an OS countdown timer as a pollable handle.
//
// Timers are one-shot: after an expiration is consumed the timer stays inert
// until it is armed again. Arming with a zero duration disarms.
package timer
