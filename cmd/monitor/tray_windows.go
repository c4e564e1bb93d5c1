//go:build windows

package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/getlantern/systray"
)

// hideConsoleWindow detaches from the console and hides any visible console
// window so the monitor lives in the tray alone.
func hideConsoleWindow() {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	user32 := syscall.NewLazyDLL("user32.dll")
	freeConsole := kernel32.NewProc("FreeConsole")
	getConsoleWindow := kernel32.NewProc("GetConsoleWindow")
	showWindow := user32.NewProc("ShowWindow")

	// Detach from any attached console first.
	_, _, _ = freeConsole.Call()

	// Best-effort hide in case a window is still associated.
	hwnd, _, _ := getConsoleWindow.Call()
	if hwnd != 0 {
		const SW_HIDE = 0
		showWindow.Call(hwnd, uintptr(SW_HIDE))
	}
}

// StartTray runs a minimal system tray with a quit option; quitting stops
// the poll loop through onQuit.
func StartTray(onQuit func()) {
	hideConsoleWindow()
	systray.Run(func() {
		systray.SetTitle("Joban Watch")
		systray.SetTooltip("常磐線の運行情報を監視しています")
		mQuit := systray.AddMenuItem("終了", "監視を終了する")
		go func() {
			for {
				select {
				case <-mQuit.ClickedCh:
					if onQuit != nil {
						onQuit()
					}
					systray.Quit()
					return
				case <-time.After(24 * time.Hour):
					// keep goroutine alive
				}
			}
		}()
	}, func() {
		fmt.Fprintln(os.Stderr, "Tray terminated")
	})
}
