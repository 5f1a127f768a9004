package shellquote_test

import (
	"errors"
	"reflect"
	"testing"

	"mediafetch/pkg/shellquote"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bin  string
		args []string
		want string
	}{
		{
			name: "no args",
			bin:  "/usr/bin/yt-dlp",
			args: nil,
			want: `/usr/bin/yt-dlp`,
		},
		{
			name: "simple args stay bare",
			bin:  "/usr/bin/yt-dlp",
			args: []string{"--newline", "-P", "/tmp/out"},
			want: `/usr/bin/yt-dlp --newline -P /tmp/out`,
		},
		{
			name: "spaces are preserved via quotes",
			bin:  "/usr/local/bin/yt-dlp",
			args: []string{"-o", "My Video %(title)s.%(ext)s"},
			want: `/usr/local/bin/yt-dlp -o "My Video %(title)s.%(ext)s"`,
		},
		{
			name: "url with query chars",
			bin:  "yt-dlp",
			args: []string{"https://example.com/watch?v=a&b=1"},
			want: `yt-dlp "https://example.com/watch?v=a&b=1"`,
		},
		{
			name: "embedded double quote is escaped",
			bin:  "yt-dlp",
			args: []string{"--title", `a"b`},
			want: `yt-dlp --title "a\"b"`,
		},
		{
			name: "dollar is escaped",
			bin:  "yt-dlp",
			args: []string{"$HOME"},
			want: `yt-dlp "\$HOME"`,
		},
		{
			name: "empty arg",
			bin:  "yt-dlp",
			args: []string{""},
			want: `yt-dlp ""`,
		},
		{
			name: "newline becomes escape sequence",
			bin:  "yt-dlp",
			args: []string{"line1\nline2"},
			want: `yt-dlp "line1\nline2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := shellquote.Join(tt.bin, tt.args)
			if got != tt.want {
				t.Fatalf("Join() mismatch\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr error
	}{
		{name: "empty", line: "   ", want: nil},
		{name: "words", line: "mpv --fs {file}", want: []string{"mpv", "--fs", "{file}"}},
		{name: "double quoted", line: `"/opt/My Player/play" "{file}"`, want: []string{"/opt/My Player/play", "{file}"}},
		{name: "single quoted", line: `vlc '--meta-title=a "b"' {file}`, want: []string{"vlc", `--meta-title=a "b"`, "{file}"}},
		{name: "escaped space", line: `/opt/My\ Player {file}`, want: []string{"/opt/My Player", "{file}"}},
		{name: "windows path in quotes", line: `"C:\Program Files\vlc.exe" {file}`, want: []string{`C:\Program Files\vlc.exe`, "{file}"}},
		{name: "escaped quote in double quotes", line: `echo "a\"b"`, want: []string{"echo", `a"b`}},
		{name: "empty quoted arg", line: `cmd ""`, want: []string{"cmd", ""}},
		{name: "unterminated", line: `mpv "{file}`, wantErr: shellquote.ErrUnterminatedQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := shellquote.Split(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Split() error = %v, want %v", err, tt.wantErr)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Split() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	t.Parallel()

	args := []string{"--title", `a "quoted" $thing`, "", "plain"}

	got, err := shellquote.Split(shellquote.Join("player", args))
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	want := append([]string{"player"}, args...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %q, want %q", got, want)
	}
}
