// Command saverctl resolves and downloads Instagram and YouTube media using
// the same pipeline as the InstantSaver server.
//
// Usage:
//
//	saverctl <command> [flags]
//
// Commands:
//
//	resolve <url>   Print the preview description (type, preview URL,
//	                download link, uploader and title) as JSON.
//
//	download <url>  Stream the media to a file. Without -o the server's
//	                suggested attachment name is used; -o - writes to
//	                stdout, which is refused when stdout is a terminal.
//
//	version         Print build information and the yt-dlp version.
//
// Environment:
//
// saverctl reads the same variables as the server (YTDLP_PATH, FFMPEG_PATH,
// INSTAGRAM_COOKIES, MANIFEST_TIMEOUT and the STREAM_* limits). A .env file
// in the working directory is loaded when present.
package main
