// Package notifications delivers optional push notifications about pipeline
// events through ntfy. When no topic is configured the service is a noop.
package notifications
