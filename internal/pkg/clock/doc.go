// Package clock provides a tiny time abstraction.
//
// Expiry decisions (challenges, sessions) read time through Clocker so tests
// can drive a Fake clock past deadlines instead of sleeping.
package clock
