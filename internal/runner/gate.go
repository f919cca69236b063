package runner

import (
	"fmt"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// gatedTools are the tools that mutate state and therefore require a human
// decision when the session has approvals enabled.
var gatedTools = map[string]bool{
	"write_file": true,
	"edit_file":  true,
	"execute":    true,
}

// readOnlyPrograms are shell programs the execute gate lets through without
// a decision. Anything not on the list, and any command the parser cannot
// fully vouch for, is gated.
var readOnlyPrograms = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true,
	"pwd": true, "echo": true, "grep": true,
	"wc": true, "which": true, "env": true, "date": true,
	"whoami": true, "uname": true, "stat": true, "file": true,
}

// Gated reports whether a tool call must be held for approval.
func Gated(tool string, args map[string]interface{}) bool {
	if !gatedTools[tool] {
		return false
	}
	if tool != "execute" {
		return true
	}
	command, _ := args["command"].(string)
	return !isReadOnlyCommand(command)
}

// isReadOnlyCommand parses command and allows it through only when every
// pipeline segment starts with an allow-listed program. Redirection,
// substitution, backgrounding, and newlines are rejected outright: the
// command runs under `sh -c`, so `&` and a newline are separators even
// when the word parser sees them as plain text.
func isReadOnlyCommand(command string) bool {
	if strings.ContainsAny(command, ">`$&\n\r") {
		return false
	}
	tokens, err := shellwords.Parse(command)
	if err != nil || len(tokens) == 0 {
		return false
	}
	expectProgram := true
	for _, tok := range tokens {
		switch tok {
		case "|", ";", "||":
			expectProgram = true
			continue
		}
		// A separator glued inside a word ("a;rm") still splits under sh.
		if strings.ContainsAny(tok, "|;&") {
			return false
		}
		if expectProgram {
			if !readOnlyPrograms[tok] {
				return false
			}
			expectProgram = false
		}
	}
	return true
}

// ReviewFor builds the review metadata surfaced with a pending action.
func ReviewFor(call v1.ActionRequest) v1.ReviewConfig {
	desc := fmt.Sprintf("The agent wants to run %s", call.Tool)
	if call.Tool == "execute" {
		if cmd, ok := call.Args["command"].(string); ok {
			desc = fmt.Sprintf("The agent wants to run: %s", cmd)
		}
	}
	return v1.ReviewConfig{
		Tool:         call.Tool,
		AllowApprove: true,
		AllowEdit:    true,
		AllowReject:  true,
		Description:  desc,
	}
}
