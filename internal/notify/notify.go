package notify

import "github.com/gen2brain/beeep"

// Send shows a desktop notification. Failures are ignored; notifications
// are best-effort.
func Send(title, message string) {
	_ = beeep.Notify(title, message, "")
}
