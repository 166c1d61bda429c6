// Package ui renders build progress and run summaries for the terminal with [lipgloss] styles.
//
// [Summary] is printed after every build, whether or not a playlist was created. It reports the
// added and skipped counts, the playlist URL when one exists, the match confidence breakdown, and
// every chart entry that did not make it onto the playlist along with the reason.
//
// [Progress] formats a single [tasks.ProgressUpdate] as one line for streaming output.
//
// Styling degrades to plain text when output is not a terminal, so the rendered strings are safe to
// write to files and pipes.
package ui
