package completion

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
)

// Item is one completion candidate ready for LSP serialization: either a
// single symbol or a companion "module" entry standing in for a whole
// scope (spec.md §4.5: "Grouping").
type Item struct {
	Module      bool
	Symbol      *graph.Symbol
	ModuleKey   string
	ModuleCount int

	Remote bool
	Scope  string

	EditRange position.Range
}

// label computes the shown text, relative to the current scope for items
// that belong to it (spec.md §4.5: "label: ... For local items, the name
// relative to the current scope").
func (it Item) label() string {
	if it.Module {
		return it.ModuleKey
	}
	name := it.Symbol.Name
	prefix := it.Scope + "/"
	if strings.HasPrefix(name, prefix) {
		return name[len(prefix):]
	}
	return name
}

func (it Item) insertText() string {
	if it.Module {
		return it.ModuleKey + "/"
	}
	return it.label()
}

func (it Item) kind() protocol.CompletionItemKind {
	if it.Module {
		return protocol.CompletionItemKindModule
	}
	switch it.Symbol.Semantics {
	case graph.SemanticsSubroutine:
		return protocol.CompletionItemKindFunction
	case graph.SemanticsDevicePort:
		return protocol.CompletionItemKindConstant
	case graph.SemanticsEnum:
		return protocol.CompletionItemKindEnumMember
	default:
		return protocol.CompletionItemKindVariable
	}
}

func (it Item) detail() string {
	if it.Module {
		return fmt.Sprintf("( %d symbols )", it.ModuleCount)
	}
	if it.Symbol.Semantics == graph.SemanticsSubroutine {
		return fmt.Sprintf("( %s )", it.Symbol.Signature)
	}
	if it.Symbol.Address <= 0x00FF {
		return fmt.Sprintf("|0x%02X", it.Symbol.Address)
	}
	return fmt.Sprintf("|0x%04X", it.Symbol.Address)
}

func (it Item) documentation() string {
	if it.Module || it.Symbol.Documentation == "" {
		return ""
	}
	return it.Symbol.Documentation
}

// sortText builds "<is_remote>:<address-hex>:<name>" so local items sort
// before remote ones, then by address (spec.md §4.5: "Serialization
// contract").
func (it Item) sortText() string {
	remote := 0
	if it.Remote {
		remote = 1
	}
	var addr uint16
	var name string
	if it.Module {
		name = it.ModuleKey
	} else {
		addr = it.Symbol.Address
		name = it.Symbol.Name
	}
	return fmt.Sprintf("%d:%04x:%s", remote, addr, name)
}

func toProtocolRange(r position.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Character)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Character)},
	}
}

// Serialize converts an Item into the wire-format protocol.CompletionItem,
// per spec.md §4.5's serialization contract.
func Serialize(it Item) protocol.CompletionItem {
	label := it.label()
	newText := it.insertText()

	item := protocol.CompletionItem{
		Label:            label,
		Kind:             it.kind(),
		Detail:           it.detail(),
		FilterText:       label,
		SortText:         it.sortText(),
		InsertText:       newText,
		InsertTextFormat: protocol.InsertTextFormatPlainText,
		InsertTextMode:   protocol.InsertTextModeAsIs,
		TextEdit: &protocol.TextEdit{
			Range:   toProtocolRange(it.EditRange),
			NewText: newText,
		},
	}

	if doc := it.documentation(); doc != "" {
		item.Documentation = doc
	}

	return item
}
