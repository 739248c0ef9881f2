package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCommitMessage(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "simple",
			ctype:   "feat",
			subject: "add feature",
			want:    "feat: add feature\n\nSaved-by: docsync",
		},
		{
			name:    "with scope",
			ctype:   "fix",
			scope:   "notes",
			subject: "fix typo",
			want:    "fix(notes): fix typo\n\nSaved-by: docsync",
		},
		{
			name:    "with body",
			ctype:   "docs",
			subject: "update readme",
			body:    "Added new examples.  ",
			want:    "docs: update readme\n\nAdded new examples.\n\nSaved-by: docsync",
		},
		{
			name:    "empty type defaults to chore",
			subject: "tidy",
			want:    "chore: tidy\n\nSaved-by: docsync",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCommitMessage(tt.ctype, tt.scope, tt.subject, tt.body))
		})
	}
}

func TestSaveMessage(t *testing.T) {
	assert.Equal(t, "docs(notes/daily): save today.md\n\nSaved-by: docsync", SaveMessage("notes/daily/today.md"))
	assert.Equal(t, "docs: save readme.md\n\nSaved-by: docsync", SaveMessage("readme.md"))
}

func TestMessage_Header(t *testing.T) {
	assert.Equal(t, "chore: tidy", Message{Subject: "tidy"}.Header())
	assert.Equal(t, "docs(notes): save a.md", Message{Type: CommitTypeDocs, Scope: "notes", Subject: "save a.md"}.Header())
}

func TestAppendFooter(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "plain", msg: "simple message", want: "simple message\n\nSaved-by: docsync"},
		{name: "already has newline", msg: "line 1\n", want: "line 1\n\nSaved-by: docsync"},
		{name: "already has footer", msg: "done\n\nSaved-by: docsync", want: "done\n\nSaved-by: docsync"},
		{name: "trailing blank lines", msg: "tidy up\n\n\n", want: "tidy up\n\nSaved-by: docsync"},
		{name: "multi paragraph", msg: "rewrite intro\n\nshorter now", want: "rewrite intro\n\nshorter now\n\nSaved-by: docsync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppendFooter(tt.msg))
		})
	}
}
