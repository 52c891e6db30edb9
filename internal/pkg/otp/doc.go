// Package otp implements the one-time code primitives: RFC 6238 TOTP with
// provisioning QR images, and uniformly random numeric codes for SMS.
package otp
