package input

import "strings"

// Frame renders one source's value as a labelled prompt block:
//
//	<descriptor> INPUT
//	// START
//	<body>
//	// END
//
// The block starts and ends with a newline so blocks concatenate cleanly.
func Frame(descriptor, body string) string {
	var sb strings.Builder
	sb.Grow(len(descriptor) + len(body) + 32)
	sb.WriteString("\n")
	sb.WriteString(descriptor)
	sb.WriteString(" INPUT\n// START\n")
	sb.WriteString(body)
	sb.WriteString("\n// END\n")
	return sb.String()
}
