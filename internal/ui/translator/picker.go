// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package translator

import (
	"strings"

	"github.com/jeranaias/otrans/internal/ui/styles"
	"github.com/jeranaias/otrans/internal/util"
)

// pickerItem is one row of a list overlay.
type pickerItem struct {
	title  string
	detail string
	value  string
}

// picker is a scrolling single-selection list.
type picker struct {
	title  string
	empty  string
	items  []pickerItem
	cursor int
}

func (p *picker) setItems(items []pickerItem) {
	p.items = items
	if p.cursor >= len(items) {
		p.cursor = len(items) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// selectValue moves the cursor to the item with value v, if present.
func (p *picker) selectValue(v string) {
	for i, it := range p.items {
		if it.value == v {
			p.cursor = i
			return
		}
	}
}

func (p *picker) up() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *picker) down() {
	if p.cursor < len(p.items)-1 {
		p.cursor++
	}
}

func (p *picker) selected() (pickerItem, bool) {
	if p.cursor < 0 || p.cursor >= len(p.items) {
		return pickerItem{}, false
	}
	return p.items[p.cursor], true
}

// view renders at most height rows, keeping the cursor visible.
func (p *picker) view(theme *styles.Theme, width, height int) string {
	var sb strings.Builder
	sb.WriteString(theme.ListTitle.Render(p.title))
	sb.WriteString("\n")

	if len(p.items) == 0 {
		sb.WriteString(theme.Placeholder.Render(p.empty))
		return sb.String()
	}

	rows := height - 2
	if rows < 1 {
		rows = 1
	}
	start := 0
	if p.cursor >= rows {
		start = p.cursor - rows + 1
	}
	end := start + rows
	if end > len(p.items) {
		end = len(p.items)
	}

	for i := start; i < end; i++ {
		it := p.items[i]
		title := util.TruncateWidth(util.OneLine(it.title), width/2)
		line := title
		if it.detail != "" {
			detailWidth := width - util.StringWidth(title) - 6
			if detailWidth > 3 {
				line += "  " + theme.ListDetail.Render(util.TruncateWidth(util.OneLine(it.detail), detailWidth))
			}
		}
		if i == p.cursor {
			sb.WriteString(theme.ListSelected.Render(line))
		} else {
			sb.WriteString(theme.ListItem.Render(line))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
