// Package cookies hands each yt-dlp run a private copy of the Instagram
// cookie file. yt-dlp saves its cookie jar back to the --cookies path when
// it exits, so concurrent runs sharing one file would overwrite each other
// and slowly replace the operator's cookies with whatever the last run saw.
package cookies
