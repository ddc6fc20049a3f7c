// Package opus reads, writes and streams the clip format used by the bot.
//
// A clip is a sequence of length-prefixed Opus frames
// ([uint16 LE length][opus bytes]) with no header. Encode produces that
// format from any audio FFmpeg understands, Source reads it back and
// Stream paces frames into a voice connection's send channel.
package opus
