package tui

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type diffOp struct {
	kind byte // ' ', '-', '+'
	text string
	old  int
	new  int
}

// UnifiedDiff returns a line-based unified diff from before to after, or ""
// when they are equal. context is the number of unchanged lines kept around
// each change.
func UnifiedDiff(beforeName, afterName, before, after string, context int) string {
	if before == after {
		return ""
	}
	if context < 0 {
		context = 0
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []diffOp
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, line := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, diffOp{kind: ' ', text: line, old: oldLine, new: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, diffOp{kind: '-', text: line, old: oldLine, new: newLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, diffOp{kind: '+', text: line, old: oldLine, new: newLine})
				newLine++
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", beforeName, afterName)
	wrote := false
	for i := 0; i < len(ops); {
		if ops[i].kind == ' ' {
			i++
			continue
		}
		start := i - context
		if start < 0 {
			start = 0
		}
		last := i
		for j := i; j < len(ops); j++ {
			if ops[j].kind != ' ' {
				last = j
				continue
			}
			if j-last > 2*context {
				break
			}
		}
		stop := last + context + 1
		if stop > len(ops) {
			stop = len(ops)
		}
		writeHunk(&b, ops[start:stop])
		wrote = true
		i = stop
	}
	if !wrote {
		// Only trailing-newline differences remain.
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeHunk(b *strings.Builder, ops []diffOp) {
	oldCount, newCount := 0, 0
	for _, op := range ops {
		if op.kind != '+' {
			oldCount++
		}
		if op.kind != '-' {
			newCount++
		}
	}
	// an empty side is addressed by the line before it, as in diff -u
	oldStart, newStart := ops[0].old, ops[0].new
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}
	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	for _, op := range ops {
		b.WriteByte(op.kind)
		b.WriteString(op.text)
		b.WriteByte('\n')
	}
}
