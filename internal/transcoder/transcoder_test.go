package transcoder

import (
	"strings"
	"testing"

	"instantsaver/internal/source"
)

var (
	igPost  = source.Reference{Platform: source.Instagram, Kind: source.KindPost, URL: "https://www.instagram.com/reel/C8q1n2yR4kP/", ID: "C8q1n2yR4kP"}
	ytVideo = source.Reference{Platform: source.YouTube, Kind: source.KindVideo, URL: "https://www.youtube.com/watch?v=abc123", ID: "abc123"}
)

func TestFormatExpression(t *testing.T) {
	tests := []struct {
		name     string
		platform source.Platform
		kind     Kind
		ceiling  int
		want     string
	}{
		{
			name: "instagram video", platform: source.Instagram, kind: KindVideo,
			want: "bv*[vcodec^=avc]+ba[acodec^=mp4a]/b[ext=mp4]/b",
		},
		{
			name: "youtube video", platform: source.YouTube, kind: KindVideo,
			want: "b[ext=mp4][vcodec^=avc]/bv*[vcodec^=avc]+ba[acodec^=mp4a]/b[ext=mp4]/b",
		},
		{
			name: "instagram video with ceiling", platform: source.Instagram, kind: KindVideo, ceiling: 720,
			want: "bv*[vcodec^=avc][height<=720]+ba[acodec^=mp4a]/b[ext=mp4][height<=720]/b[height<=720]",
		},
		{
			name: "youtube video with ceiling", platform: source.YouTube, kind: KindVideo, ceiling: 480,
			want: "b[ext=mp4][vcodec^=avc][height<=480]/bv*[vcodec^=avc][height<=480]+ba[acodec^=mp4a]/b[ext=mp4][height<=480]/b[height<=480]",
		},
		{
			name: "audio ignores ceiling", platform: source.YouTube, kind: KindAudio, ceiling: 720,
			want: "ba[ext=m4a]/ba[acodec^=mp4a]/ba",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExpression(tt.platform, tt.kind, tt.ceiling); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	tr := New(Options{FFmpegPath: "/opt/ffmpeg/bin/ffmpeg"})

	video := strings.Join(tr.Args(Job{Ref: igPost, Kind: KindVideo}, "/tmp/c.txt"), " ")
	for _, want := range []string{
		"--merge-output-format mp4",
		"--no-playlist", "--no-part", "--quiet", "--no-warnings",
		"--ffmpeg-location /opt/ffmpeg/bin/ffmpeg",
		"--cookies /tmp/c.txt",
	} {
		if !strings.Contains(video, want) {
			t.Errorf("Expected %q in %q", want, video)
		}
	}
	if !strings.HasSuffix(video, "-o - -- "+igPost.URL) {
		t.Errorf("Expected stdout output and URL last, got %q", video)
	}

	audio := strings.Join(tr.Args(Job{Ref: ytVideo, Kind: KindAudio}, "/tmp/c.txt"), " ")
	if strings.Contains(audio, "--merge-output-format") {
		t.Errorf("Audio jobs should not merge, got %q", audio)
	}
	if strings.Contains(audio, "--cookies") {
		t.Errorf("Cookies are Instagram only, got %q", audio)
	}
}

func TestArgsDefaultFFmpeg(t *testing.T) {
	tr := New(Options{FFmpegPath: "ffmpeg"})
	if args := strings.Join(tr.Args(Job{Ref: ytVideo, Kind: KindVideo}, ""), " "); strings.Contains(args, "--ffmpeg-location") {
		t.Errorf("Expected default ffmpeg lookup, got %q", args)
	}
}

func TestNewDefaults(t *testing.T) {
	tr := New(Options{})
	if tr.opts.Binary != "yt-dlp" {
		t.Errorf("Expected default binary yt-dlp, got %q", tr.opts.Binary)
	}
	if tr.Live() != 0 || tr.GetStats().LiveProcesses != 0 {
		t.Error("Expected no live processes")
	}
	tr.Cleanup()
}
