// Package ui holds the human facing output of a run: one line per decision,
// a single line transfer bar and desktop notifications at the end.
//
// Structured diagnostics go through package logger instead.
package ui
