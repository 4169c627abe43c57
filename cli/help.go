// Copyright (c) 2023-2026, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package cli

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"

	"github.com/wlansim/txagg/logger"
)

// helpEntry is the help of one command: the first sentence of its description and the full text.
type helpEntry struct {
	short string
	long  strings.Builder
}

// Help renders the command help from the embedded README.md, wrapped to the terminal width.
type Help struct {
	termWidth   uint
	maxCmdWidth uint
	entries     map[string]*helpEntry
}

var (
	cmdHeaderPattern  = regexp.MustCompile("^### .+")
	linkTargetPattern = regexp.MustCompile(`\(#[a-z]+\)`)
)

//go:embed README.md
var cliHelpFile string

func newHelp() Help {
	h := Help{
		termWidth:   80,
		maxCmdWidth: 10,
		entries:     map[string]*helpEntry{},
	}
	h.parseHelpFile(cliHelpFile)
	h.update()
	return h
}

// update picks up the current terminal width.
func (help *Help) update() {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	width, _, err := term.GetSize(fd)
	logger.PanicIfError(err, "Could not get terminal size.")
	help.termWidth = uint(width)
}

// commandNames returns the documented commands, sorted.
func (help *Help) commandNames() []string {
	cmds := make([]string, 0, len(help.entries))
	for k := range help.entries {
		cmds = append(cmds, k)
	}
	sort.Strings(cmds)
	return cmds
}

func (help *Help) outputGeneralHelp() string {
	var sb strings.Builder
	for _, c := range help.commandNames() {
		_, _ = fmt.Fprintf(&sb, "%-15s %s\n", c, help.entries[c].short)
	}
	sb.WriteString(wordwrap.WrapString("\nFor detailed help per command, use: 'help <command>'\n", help.termWidth))
	return sb.String()
}

func (help *Help) outputCommandHelp(command string) string {
	help.update()
	command = strings.ToLower(command)
	explanation := "(Non-existent command.)"
	if e, ok := help.entries[command]; ok {
		explanation = e.long.String()
	}

	var sb strings.Builder
	wrapped := wordwrap.WrapString(explanation, help.termWidth-help.maxCmdWidth-1)
	for _, line := range strings.Split(wrapped, "\n") {
		if cmdHeaderPattern.MatchString(line) {
			sb.WriteString(line[strings.Index(line, " ")+1:])
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// completer offers the command names and help topics for tab completion.
func (help *Help) completer() readline.AutoCompleter {
	var topics, items []readline.PrefixCompleterInterface
	for _, c := range help.commandNames() {
		topics = append(topics, readline.PcItem(c))
		if c != "help" {
			items = append(items, readline.PcItem(c))
		}
	}
	items = append(items, readline.PcItem("help", topics...))
	return readline.NewPrefixCompleter(items...)
}

// parseHelpFile splits the markdown into one entry per '### <cmd>' section. Code blocks become the
// indented Definition and Example parts.
func (help *Help) parseHelpFile(md string) {
	var cur *helpEntry
	inCode := false
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		indent := ""

		switch {
		case len(line) == 0:
			continue
		case cmdHeaderPattern.MatchString(line):
			name := strings.TrimSpace(line[strings.Index(line, " ")+1:])
			cur = &helpEntry{}
			help.entries[name] = cur
			cur.long.WriteString("### " + name + "\n")
			continue
		case cur == nil:
			continue
		case line == "```shell":
			line, inCode = "\nDefinition:", true
		case line == "```bash":
			line, inCode = "\nExample:", true
		case line == "```":
			line, inCode = "", false
		case inCode:
			indent = "  "
		case cur.short == "":
			cur.short = firstSentence(line)
		}
		cur.long.WriteString(indent + markdownUnquote(line) + "\n")
	}
}

func firstSentence(line string) string {
	if idx := strings.Index(line, "."); idx > 0 {
		return line[:idx+1]
	}
	return line
}

func markdownUnquote(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	return linkTargetPattern.ReplaceAllString(md, "")
}
