package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/uispec/internal/ir"
)

// Outline renders r as indented text: one line per node with its type,
// render key and canonical props, followed by the diagnostics. Output is
// stable for a given result and is what golden files compare.
func (r RenderResult) Outline() string {
	var b strings.Builder
	if r.Root == nil {
		b.WriteString("(empty)\n")
	}
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Type)
		b.WriteByte(' ')
		b.WriteString(n.RenderKey)
		if n.Fallback {
			b.WriteString(" (fallback)")
		}
		if len(n.Props) > 0 {
			props, err := ir.MarshalCanonical(n.Props)
			if err != nil {
				props = []byte(fmt.Sprintf("<%v>", err))
			}
			b.WriteByte(' ')
			b.Write(props)
		}
		b.WriteByte('\n')
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if r.Root != nil {
		walk(r.Root, 0)
	}
	for _, d := range r.Diagnostics {
		b.WriteString("! ")
		b.WriteString(d.Error())
		b.WriteByte('\n')
	}
	return b.String()
}
