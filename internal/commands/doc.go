// ABOUTME: Package commands is the user-facing command surface over the prefs service
// ABOUTME: It validates input and translates store failures into displayable messages

// Package commands implements the eight operations exposed to the UI layer:
// get/save settings, get/save/clear command history, and get/save/clear
// cached scans, plus a status report.
//
// Every failure is returned as an *Error carrying a Kind for transports to
// map onto status codes and a Message suitable for showing to the user.
package commands
