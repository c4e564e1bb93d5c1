//go:build !windows
// +build !windows

package main

// StartTray is a no-op on non-Windows platforms; present to satisfy
// cross-platform builds. The poll loop keeps running without a tray.
func StartTray(onQuit func()) {}
