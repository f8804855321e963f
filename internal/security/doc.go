// Package security derives the read-only posture summary returned by
// Engine.SecurityReport from an engine configuration.
package security
