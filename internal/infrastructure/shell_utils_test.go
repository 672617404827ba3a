package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain flag", "--no-playlist", "--no-playlist"},
		{"plain path", "/srv/media/clip.mp4", "/srv/media/clip.mp4"},
		{"empty", "", "''"},
		{"space", "/home/me/My Music", "'/home/me/My Music'"},
		{"output template", "%(title)s.%(ext)s", "'%(title)s.%(ext)s'"},
		{"format with slash fallback", "bestaudio/best", "bestaudio/best"},
		{"format with plus", "137+bestaudio", "137+bestaudio"},
		{"search query", "ytsearch5:lofi beats", "'ytsearch5:lofi beats'"},
		{"url with query", "https://www.youtube.com/watch?v=abc&t=5", "'https://www.youtube.com/watch?v=abc&t=5'"},
		{"single quote", "it's here", `'it'\''s here'`},
		{"dollar", "$HOME/x", "'$HOME/x'"},
		{"backslash", `C:\media`, `'C:\media'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscape(tt.input))
		})
	}
}

func TestShellEscapeCommand(t *testing.T) {
	got := ShellEscapeCommand("/opt/my tools/yt-dlp", "--newline", "-o", "/dl/song.%(ext)s", "-f", "251", "https://youtu.be/abc")
	assert.Equal(t, "'/opt/my tools/yt-dlp' --newline -o '/dl/song.%(ext)s' -f 251 https://youtu.be/abc", got)

	assert.Equal(t, "yt-dlp", ShellEscapeCommand("yt-dlp"))
}
