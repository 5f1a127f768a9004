package downloader

import (
	"fmt"
	"regexp"
	"strings"

	"mediafetch/internal/consts"
	"mediafetch/internal/errs"
)

// Rule maps a diagnostic pattern to an error kind and a user-facing message.
type Rule struct {
	Pattern *regexp.Regexp
	Kind    errs.Kind
	Message string
}

// Rules is the ordered classification table. The first matching rule wins, so specific
// patterns must precede general ones: geo before unavailable, age before sign-in.
// The last rule is the catch-all for any ERROR line.
var Rules = []Rule{
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:not made this video available in your country|geo[- ]?restrict|available (?:in|from) your (?:country|region|location)|unavailable in your country)`),
		Kind:    errs.KindGeoRestricted,
		Message: "Geo-restricted: the video is not available in your region.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:age[- ]?restrict|confirm your age|age verification|inappropriate for some users)`),
		Kind:    errs.KindAgeRestricted,
		Message: "Age-restricted video: sign in or provide cookies of an account that may watch it.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:private video|requires? login|login required|sign in|members[- ]only|join this channel)`),
		Kind:    errs.KindRequiresAuthentication,
		Message: "Login required: the video is private or requires an account.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:VPN detected|Sorry for the interruption|not a bot)`),
		Kind:    errs.KindRequiresAuthentication,
		Message: "Bot detection: the platform blocked automated access. Try another connection or provide cookies.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:ffmpeg (?:is )?not (?:found|installed)|ffprobe and ffmpeg not found)`),
		Kind:    errs.KindDependencyMissing,
		Message: "ffmpeg is missing: it is required to merge or convert this media.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:Too Many Requests|HTTP Error 429)`),
		Kind:    errs.KindDownloadFailed,
		Message: "Rate limit exceeded: too many requests. Try again later.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:timed out|timeout)`),
		Kind:    errs.KindTimedOut,
		Message: "Timed out: the source did not respond in time.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:video (?:is )?unavailable|This video is not available|has been removed|no longer available|does not exist|HTTP Error 404|no (?:video|audio) formats found|Requested format is not available|playlist is empty)`),
		Kind:    errs.KindUnavailableSource,
		Message: "Video unavailable: it was deleted, made private or has no downloadable formats.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*Unsupported URL`),
		Kind:    errs.KindUnavailableSource,
		Message: "Unsupported URL: no extractor supports this address.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:Unknown host|Name or service not known|Failed to resolve|getaddrinfo failed|Temporary failure in name resolution)`),
		Kind:    errs.KindDownloadFailed,
		Message: "Network error: could not resolve the host name. Check your connection.",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:.*(?:Unable to download webpage|Could not download webpage|HTTP Error 40[03]|Unable to connect to proxy|Connection refused)`),
		Kind:    errs.KindDownloadFailed,
		Message: "Network error: failed to retrieve the page (not found, access denied or proxy failure).",
	},
	{
		Pattern: regexp.MustCompile(`(?i)ERROR:\s*(.*)`),
		Kind:    errs.KindDownloadFailed,
		Message: "yt-dlp error: check the log for details.",
	},
}

// Classify turns the diagnostic output of a failed yt-dlp run into a classified error.
// Only the last consts.MaxDiagnosticLines lines are inspected.
func Classify(lines []string, exitCode int) *errs.Error {
	if len(lines) > consts.MaxDiagnosticLines {
		lines = lines[len(lines)-consts.MaxDiagnosticLines:]
	}

	diagnostic := strings.Join(lines, "\n")
	candidates := diagnosticCandidates(lines)

	for idx, rule := range Rules {
		for _, line := range candidates {
			m := rule.Pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			message := rule.Message
			if idx == len(Rules)-1 {
				message = catchAllMessage(m[1], message)
			}

			return newClassified(rule.Kind, message, diagnostic)
		}
	}

	return newClassified(errs.KindDownloadFailed,
		fmt.Sprintf("yt-dlp exited with code %d, check the log for details", exitCode), diagnostic)
}

// diagnosticCandidates keeps lines mentioning an error, a warning or a failure,
// falling back to the tail of the output.
func diagnosticCandidates(lines []string) []string {
	var out []string

	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "warning") || strings.Contains(lower, "fail") {
			out = append(out, line)
		}
	}

	if len(out) > 0 {
		return out
	}

	const tail = 10

	return lines[max(len(lines)-tail, 0):]
}

func catchAllMessage(captured, fallback string) string {
	captured = strings.TrimSpace(captured)
	if captured == "" {
		return fallback
	}

	runes := []rune(captured)
	if len(runes) > consts.MaxErrorMessageLen {
		return "yt-dlp error: " + string(runes[:consts.MaxErrorMessageLen]) + "..."
	}

	return "yt-dlp error: " + captured
}

func newClassified(kind errs.Kind, message, diagnostic string) *errs.Error {
	e := errs.New(kind, message)
	if kind == errs.KindDownloadFailed {
		e.Diagnostic = diagnostic
	}

	return e
}
