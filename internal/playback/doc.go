// Package playback serializes clip playback per guild.
//
// Every guild (tenant) owns one playback loop. Requests submitted through the
// Orchestrator are queued in FIFO order and played one at a time over a single
// voice connection, which the loop joins, moves and leaves as needed. Skip
// votes, forced skips and explicit disconnects interrupt the active request
// without ever letting two requests be active at once.
//
// The voice transport is abstracted behind VoiceGateway and Connection so the
// loop can be driven by discordgo in production and by fakes in tests.
package playback
