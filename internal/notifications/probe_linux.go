//go:build linux

package notifications

import (
	"log"

	"github.com/godbus/dbus/v5"
)

const notificationsBusName = "org.freedesktop.Notifications"

// DaemonAvailable reports whether a notification daemon owns its well-known
// name on the session bus
func DaemonAvailable() bool {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Printf("WARN: session bus unavailable: %v", err)
		return false
	}
	defer func() { _ = conn.Close() }()

	var hasOwner bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, notificationsBusName).Store(&hasOwner)
	if err != nil {
		log.Printf("WARN: probing %s: %v", notificationsBusName, err)
		return false
	}
	return hasOwner
}
