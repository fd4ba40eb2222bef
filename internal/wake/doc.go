// Package wake listens for the external wake trigger.
//
// The monitor subscribes to udev netlink events from the input subsystem and
// invokes its handler when the configured wake device fires. The power
// arbiter then runs debounce validation against TriggerActive, which reads
// the trigger line directly when a sysfs path is configured and otherwise
// falls back to a recent-event window.
package wake
