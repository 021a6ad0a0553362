// Package notify provides the Notification Forwarder and the webhook client
// it delivers through.
//
// Webhook endpoint (Discord-compatible):
//   - POST https://discord.com/api/webhooks/{id}/{token}[?thread_id=...]
//
// Gateway-sourced messages always go out with allowed_mentions.parse = [].
// Status messages (connected, enabled, disabled, reconnecting, ...) are
// rendered from the configured theme.
package notify
