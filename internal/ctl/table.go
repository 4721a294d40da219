package ctl

import (
	"fmt"
	"strings"
)

// table buffers rows and prints them with aligned columns.
type table struct {
	indent string
	head   []string
	rows   [][]string
	right  map[int]bool
}

func newTable(indent string, head ...string) *table {
	return &table{indent: indent, head: head, right: map[int]bool{}}
}

// alignRight right-aligns column i (numbers, sizes).
func (t *table) alignRight(i int) { t.right[i] = true }

func (t *table) row(cells ...string) { t.rows = append(t.rows, cells) }

func (t *table) flush() {
	widths := make([]int, len(t.head))
	for i, h := range t.head {
		widths[i] = len(h)
	}
	for _, r := range t.rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(r[i]))
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(widths))
		for i := range widths {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			if t.right[i] {
				parts[i] = padLeft(c, widths[i])
			} else if i == len(widths)-1 {
				parts[i] = c
			} else {
				parts[i] = padRight(c, widths[i])
			}
		}
		return t.indent + strings.Join(parts, "  ")
	}

	fmt.Fprintln(out, colorize(dim, line(t.head)))
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	fmt.Fprintln(out, colorize(dim, t.indent+strings.Repeat("─", total-2)))
	for _, r := range t.rows {
		fmt.Fprintln(out, line(r))
	}
}
