// Package ui renders CLI output with lipgloss styles: connection and playlist tables,
// song lists, progress lines and sync summaries.
//
// Every renderer returns a string; the caller decides where it is written.
package ui
