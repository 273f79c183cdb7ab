package policytext

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/policyproof/policyproof/internal/apperr"
)

// headerPattern matches a block header: `name{f1,f2}:` for an object or
// `name[N]{f1,f2}:` for an array of N declared rows.
var headerPattern = regexp.MustCompile(`^(\w+)(\[(\d+)\])?\{([^}]*)\}:$`)

// block is one parsed `name{...}:` / `name[N]{...}:` section: its
// declared field names and data rows, each row already split into
// fields (the delimiter is used while splitting and not kept).
type block struct {
	name      string
	isArray   bool
	declared  int // declared row count; 1 for an object block
	fields    []string
	rows      [][]string
	headerLn  int
	rowLines  []int // source line of each row, for error reporting
}

// parseBlocks scans the full document text into its constituent blocks,
// in source order, applying strict-mode validation throughout: declared
// row-count mismatch, per-row field-count mismatch, duplicate field
// names within a block's header, and trailing content after the last
// declared row of a block.
func parseBlocks(text string) ([]block, error) {
	lines := strings.Split(text, "\n")
	var blocks []block

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "  ") {
			return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "row found outside any block header"}
		}

		m := headerPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "expected a block header of the form name{field,...}: or name[N]{field,...}:"}
		}

		name := m[1]
		isArray := m[2] != ""
		declared := 1
		if isArray {
			n, err := strconv.Atoi(m[3])
			if err != nil {
				return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "invalid declared row count"}
			}
			declared = n
		}

		delim := byte(',')
		fieldList := m[4]
		if strings.Contains(fieldList, "\t") {
			delim = '\t'
		}
		fields, err := splitRow(fieldList, delim, i+1, 1)
		if err != nil {
			return nil, err
		}
		if dupField := firstDuplicate(fields); dupField != "" {
			return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "duplicate field name " + strconv.Quote(dupField) + " in block header"}
		}

		b := block{name: name, isArray: isArray, declared: declared, fields: fields, headerLn: i + 1}
		i++

		for r := 0; r < declared; r++ {
			if i >= len(lines) {
				return nil, &apperr.ParseError{Line: i, Column: 1, Reason: "expected " + strconv.Itoa(declared) + " row(s) for block " + strconv.Quote(name) + ", found fewer"}
			}
			rowLine := lines[i]
			rowTrimmed := strings.TrimRight(rowLine, "\r")
			if !strings.HasPrefix(rowTrimmed, "  ") {
				return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "expected an indented row for block " + strconv.Quote(name)}
			}
			content := rowTrimmed[2:]
			fieldValues, err := splitRow(content, delim, i+1, 3)
			if err != nil {
				return nil, err
			}
			if len(fieldValues) != len(fields) {
				return nil, &apperr.ParseError{Line: i + 1, Column: 1, Reason: "row has " + strconv.Itoa(len(fieldValues)) + " fields, expected " + strconv.Itoa(len(fields))}
			}
			b.rows = append(b.rows, fieldValues)
			b.rowLines = append(b.rowLines, i+1)
			i++
		}

		blocks = append(blocks, b)
	}

	return blocks, nil
}

func firstDuplicate(fields []string) string {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			return f
		}
		seen[f] = struct{}{}
	}
	return ""
}

// splitRow splits a row into fields on delim, honoring double-quoted
// fields (required whenever a field's literal value contains delim) and
// rejecting an unterminated quote.
func splitRow(content string, delim byte, line, startCol int) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	col := startCol

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(content) && content[i+1] == '"' {
					cur.WriteByte('"')
					i++
					continue
				}
				inQuotes = false
				continue
			}
			cur.WriteByte(c)
		case c == '"' && cur.Len() == 0:
			inQuotes = true
		case c == delim:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
		col++
	}
	if inQuotes {
		return nil, &apperr.ParseError{Line: line, Column: col, Reason: "unterminated quoted field"}
	}
	fields = append(fields, cur.String())
	return fields, nil
}

// quoteFieldIfNeeded wraps a serialized field value in double quotes
// (doubling any embedded quote) whenever it contains the row delimiter,
// a double quote, or a newline — the strict-mode requirement that a
// literal delimiter in a field value must be quoted.
func quoteFieldIfNeeded(value string, delim byte) string {
	if !strings.ContainsRune(value, rune(delim)) && !strings.ContainsAny(value, "\"\n") {
		return value
	}
	escaped := strings.ReplaceAll(value, `"`, `""`)
	return `"` + escaped + `"`
}
