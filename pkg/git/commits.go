package git

import (
	"path"
	"path/filepath"
	"strings"
)

// Conventional commit types accepted by Message.
const (
	CommitTypeFeat     = "feat"
	CommitTypeFix      = "fix"
	CommitTypeDocs     = "docs"
	CommitTypeStyle    = "style"
	CommitTypeRefactor = "refactor"
	CommitTypeChore    = "chore"
)

// Footer is the trailer line of every commit recorded by docsync.
const Footer = "Saved-by: docsync"

// Message is a Conventional Commit. Its String form is
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Saved-by: docsync
type Message struct {
	Type    string // chore when empty
	Scope   string // omitted when empty
	Subject string
	Body    string
}

// Header renders the first line of the message.
func (m Message) Header() string {
	ctype := m.Type
	if ctype == "" {
		ctype = CommitTypeChore
	}
	if m.Scope != "" {
		ctype += "(" + m.Scope + ")"
	}
	return ctype + ": " + m.Subject
}

func (m Message) String() string {
	return paragraphs(m.Header(), strings.TrimSpace(m.Body), Footer)
}

// FormatCommitMessage renders Message{ctype, scope, subject, body}.
func FormatCommitMessage(ctype, scope, subject, body string) string {
	return Message{Type: ctype, Scope: scope, Subject: subject, Body: body}.String()
}

// SaveMessage describes an automatic save of the workspace-relative relPath:
// the folder becomes the scope, none for top-level documents.
func SaveMessage(relPath string) string {
	slashed := filepath.ToSlash(relPath)
	scope := path.Dir(slashed)
	if scope == "." {
		scope = ""
	}
	return Message{Type: CommitTypeDocs, Scope: scope, Subject: "save " + path.Base(slashed)}.String()
}

// AppendFooter turns a free-form change reason into a commit message. A
// message that already carries the footer is returned unchanged.
func AppendFooter(msg string) string {
	for _, line := range strings.Split(msg, "\n") {
		if strings.TrimSpace(line) == Footer {
			return msg
		}
	}
	return paragraphs(strings.TrimRight(msg, " \t\r\n"), Footer)
}

// paragraphs joins the non-empty parts with blank lines.
func paragraphs(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
