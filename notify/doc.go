// Package notify delivers email verification codes for the engine.
//
// [LogNotifier] writes codes to a slog logger and is meant for development.
// [RedisStream] appends a delivery job to a Redis stream that an external
// mailer consumes; the engine never talks SMTP itself.
package notify
