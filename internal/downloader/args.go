package downloader

import (
	"regexp"
	"strings"

	"mediafetch/internal/entity"
)

// Platform is the source site family, used to tune format selection and file naming.
type Platform string

// Known platforms.
const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformOther     Platform = "other"
)

var (
	reYouTube   = regexp.MustCompile(`(?i)youtube\.com|youtu\.be`)
	reInstagram = regexp.MustCompile(`(?i)instagram\.com`)
	reTikTok    = regexp.MustCompile(`(?i)tiktok\.com`)
)

// DetectPlatform returns the platform url belongs to.
func DetectPlatform(url string) Platform {
	switch {
	case reYouTube.MatchString(url):
		return PlatformYouTube
	case reInstagram.MatchString(url):
		return PlatformInstagram
	case reTikTok.MatchString(url):
		return PlatformTikTok
	default:
		return PlatformOther
	}
}

// Output templates.
const (
	templateDefault  = "%(title)s.%(ext)s"
	templateUploader = "%(uploader)s - %(title)s.%(ext)s"
)

// Format selectors.
const (
	formatAudio        = "bestaudio[ext=m4a]/bestaudio"
	formatVideoYouTube = "bestvideo[ext=mp4][vcodec^=avc]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	formatVideo        = "bestvideo+bestaudio/best"
	mergeFormat        = "mp4"
	audioFormat        = "m4a"
	thumbnailFormat    = "jpg"
)

// ArgsOptions holds everything BuildArgs needs besides the request.
type ArgsOptions struct {
	OutputDir      string
	FFmpegLocation string
	CacheDir       string
	CookieFile     string
	Proxy          string
}

// BuildArgs composes the yt-dlp command line for req.
func BuildArgs(req entity.DownloadRequest, opts ArgsOptions) []string {
	platform := DetectPlatform(req.URL)

	var args []string

	switch {
	case !req.IsBestFormat():
		args = append(args, "-f", req.FormatCode)
		if req.MediaType == entity.MediaTypeVideo {
			args = append(args, "--merge-output-format", mergeFormat)
		}
	case req.MediaType == entity.MediaTypeAudio:
		args = append(args, "-f", formatAudio, "--extract-audio", "--audio-format", audioFormat)
	case platform == PlatformYouTube:
		args = append(args, "-f", formatVideoYouTube, "--merge-output-format", mergeFormat)
	default:
		args = append(args, "-f", formatVideo, "--merge-output-format", mergeFormat)
	}

	template := templateDefault
	if platform == PlatformInstagram || platform == PlatformTikTok {
		template = templateUploader
	}

	args = append(args,
		"-P", opts.OutputDir,
		"-o", template,
		"--no-warnings",
		"--newline",
		"--no-playlist",
		"--write-thumbnail",
		"--convert-thumbnails", thumbnailFormat,
		"--print-json",
	)

	if req.Subtitles.Enabled {
		args = append(args, "--write-subs")

		switch {
		case req.Subtitles.AllLanguages():
			args = append(args, "--all-subs")
		case len(req.Subtitles.Languages) > 0:
			args = append(args, "--sub-langs", strings.Join(req.Subtitles.Languages, ","))
		}

		if req.Subtitles.Embed {
			args = append(args, "--embed-subs")
		}
	}

	if opts.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", opts.FFmpegLocation)
	}

	if opts.CacheDir != "" {
		args = append(args, "--cache-dir", opts.CacheDir)
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}

	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}

	return append(args, req.URL)
}

// MetadataArgs composes the yt-dlp command line that only dumps metadata of url.
func MetadataArgs(url string, opts ArgsOptions) []string {
	args := []string{"--dump-json", "--no-playlist", "--skip-download", "--no-warnings"}

	if opts.CacheDir != "" {
		args = append(args, "--cache-dir", opts.CacheDir)
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}

	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}

	return append(args, url)
}
