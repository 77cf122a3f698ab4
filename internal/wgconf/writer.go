package wgconf

import (
	"bytes"
	"strings"
)

// Marshal renders the config in wg-quick format.
//
// A config returned by Parse and left untouched is written back byte for
// byte, apart from the file always ending in a single newline. Edited fields
// are rewritten where they were, new fields go after the last key of their
// section and cleared fields are dropped. Comments, blank lines and unknown
// keys stay where they were, and so does [Interface] when the file put
// peers before it.
func Marshal(c *Config) []byte {
	var buf bytes.Buffer
	for _, l := range c.preamble {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	at := min(c.ifaceAt, len(c.Peers))
	for i := 0; i <= len(c.Peers); i++ {
		if i == at {
			if c.Interface.header == "" {
				separate(&buf)
			}
			writeSection(&buf, "[Interface]", &c.Interface.section, c.Interface.fields())
		}
		if i == len(c.Peers) {
			break
		}
		p := c.Peers[i]
		if p.header == "" {
			separate(&buf)
		}
		writeSection(&buf, "[Peer]", &p.section, p.fields())
	}
	return buf.Bytes()
}

// separate puts a blank line between sections built in memory
func separate(buf *bytes.Buffer) {
	b := buf.Bytes()
	if len(b) == 0 || bytes.HasSuffix(b, []byte("\n\n")) {
		return
	}
	buf.WriteByte('\n')
}

func writeSection(buf *bytes.Buffer, defaultHeader string, s *section, fields []field) {
	header := s.header
	if header == "" {
		header = defaultHeader
	}
	buf.WriteString(header)
	buf.WriteByte('\n')

	present := make(map[string]bool)
	lastKV := -1
	for i, l := range s.lines {
		if l.key != "" {
			present[l.key] = true
		}
		if isKeyValue(l) {
			lastKV = i
		}
	}

	byKey := make(map[string]field, len(fields))
	for _, f := range fields {
		byKey[f.key] = f
	}

	appendNew := func() {
		for _, f := range fields {
			if !present[f.key] {
				writeField(buf, f)
			}
		}
	}

	if lastKV < 0 {
		appendNew()
	}

	rewritten := make(map[string]bool)
	for i, l := range s.lines {
		switch {
		case l.key == "":
			buf.WriteString(l.text)
			buf.WriteByte('\n')
		case byKey[l.key].rendered() == s.snapshot[l.key]:
			buf.WriteString(l.text)
			buf.WriteByte('\n')
		case !rewritten[l.key]:
			writeField(buf, byKey[l.key])
			rewritten[l.key] = true
		}
		if i == lastKV {
			appendNew()
		}
	}
}

func writeField(buf *bytes.Buffer, f field) {
	for _, v := range f.values {
		buf.WriteString(f.key)
		buf.WriteString(" = ")
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
}

// isKeyValue reports whether a stored line is a key = value line, known or
// unknown, as opposed to a comment or blank line
func isKeyValue(l rawLine) bool {
	if l.key == keyName {
		return true
	}
	t := strings.TrimSpace(l.text)
	return t != "" && t[0] != '#' && t[0] != ';'
}
