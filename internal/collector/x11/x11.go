// Package x11 reads the active window from an EWMH-compliant X11 window
// manager. Browser windows carry the page title, which is enough to spot
// most distraction sites.
package x11

import (
	"fmt"
	"log"

	"focusforest/internal/collector"
	"focusforest/internal/event"

	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// NewObserver connects to the X server and returns a focus poller backed by it.
func NewObserver() (*collector.Poller, error) {
	X, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	if _, err := ewmh.CurrentDesktopGet(X); err != nil {
		log.Printf("Warning: EWMH potentially not supported by Window Manager: %v", err)
	}

	return collector.NewPoller("X11", func() (event.FocusInfo, error) {
		return activeWindow(X)
	}), nil
}

func activeWindow(X *xgbutil.XUtil) (event.FocusInfo, error) {
	win, err := ewmh.ActiveWindowGet(X)
	if err != nil {
		return event.FocusInfo{}, fmt.Errorf("could not get active window ID: %w", err)
	}
	if win == 0 {
		return event.FocusInfo{AppName: "None", Title: "No Active Window"}, nil
	}

	// _NET_WM_NAME first, WM_NAME for older clients.
	title, err := ewmh.WmNameGet(X, win)
	if err != nil || title == "" {
		title, err = icccm.WmNameGet(X, win)
		if err != nil || title == "" {
			title = "Unknown Title"
		}
	}

	appName := "Unknown App"
	if hints, err := icccm.WmClassGet(X, win); err == nil && hints != nil {
		appName = hints.Class
	}
	return event.FocusInfo{AppName: appName, Title: title}, nil
}
