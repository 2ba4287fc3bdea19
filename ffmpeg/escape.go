package ffmpeg

import "strings"

// EscapeOptionValue escapes a value for use inside a filter option list
// (the first level of ffmpeg filter escaping).
func EscapeOptionValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(s)
}

// EscapeGraph escapes a filter description for embedding in a filtergraph
// (the second level).
func EscapeGraph(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
	return r.Replace(s)
}

// FilterPath escapes a file path used as a filter argument, such as the
// subtitles filter's filename. Backslashes are turned into forward slashes
// first so Windows paths survive both levels.
func FilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return EscapeGraph(EscapeOptionValue(path))
}

// Quote wraps an expression in single quotes for a filter option. The
// expressions built here never contain quotes themselves.
func Quote(expr string) string {
	return "'" + strings.ReplaceAll(expr, "'", "") + "'"
}

// ConcatEntry formats one line of a concat demuxer list file
func ConcatEntry(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
