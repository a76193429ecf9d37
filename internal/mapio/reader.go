package mapio

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/npratt/mapedit/internal/mapmodel"
)

// Mode selects between a whole document and a clipboard fragment.
type Mode int

const (
	// ModeFile is a <map> document holding exactly one root node.
	ModeFile Mode = iota
	// ModeClipboard is a bare <node> subtree.
	ModeClipboard
)

func (m Mode) String() string {
	if m == ModeClipboard {
		return "clipboard"
	}
	return "file"
}

// Element and attribute names of the document format.
const (
	elemMap      = "map"
	elemNode     = "node"
	attrVersion  = "version"
	attrText     = "TEXT"
	attrID       = "ID"
	attrFolded   = "FOLDED"
	attrPosition = "POSITION"

	positionLeft  = "left"
	positionRight = "right"
)

// ParseError reports malformed input together with the line it was found on.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// XMLReader builds node trees from XML.
type XMLReader struct {
	logger *slog.Logger
}

// NewXMLReader creates a reader. A nil logger uses slog.Default().
func NewXMLReader(logger *slog.Logger) *XMLReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &XMLReader{logger: logger}
}

// CreateNodeTreeFromXML parses r and returns the detached root of the tree
// it describes. In ModeClipboard, IDs that already exist in m are replaced
// with fresh ones so a pasted fragment never collides with the target map.
// m may be nil.
func (x *XMLReader) CreateNodeTreeFromXML(m *mapmodel.Map, r io.Reader, mode Mode) (*mapmodel.Node, error) {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity

	p := &treeParser{dec: dec, seen: make(map[string]bool), logger: x.logger}
	if mode == ModeClipboard {
		p.target = m
	}

	start, err := p.nextStart()
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeFile:
		if start.Name.Local != elemMap {
			return nil, p.errorf("expected <%s>, found <%s>", elemMap, start.Name.Local)
		}
		if v := attr(start, attrVersion); v != CurrentVersion && v != LegacyVersion {
			x.logger.Warn("map version not current", "version", v)
		}
		return p.parseMap()
	case ModeClipboard:
		if start.Name.Local != elemNode {
			return nil, p.errorf("expected <%s>, found <%s>", elemNode, start.Name.Local)
		}
		root, err := p.parseNode(start, false)
		if err != nil {
			return nil, err
		}
		if err := p.expectEOF(); err != nil {
			return nil, err
		}
		return root, nil
	}
	return nil, fmt.Errorf("unknown mode %d", mode)
}

type treeParser struct {
	dec    *xml.Decoder
	target *mapmodel.Map
	seen   map[string]bool
	logger *slog.Logger
}

func (p *treeParser) errorf(format string, args ...any) error {
	return &ParseError{Line: lineOf(p.dec), Err: fmt.Errorf(format, args...)}
}

func (p *treeParser) wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Line: lineOf(p.dec), Err: err}
}

// nextStart skips prolog tokens up to the first element.
func (p *treeParser) nextStart() (xml.StartElement, error) {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, p.errorf("document is empty")
		}
		if err != nil {
			return xml.StartElement{}, p.wrap(err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func (p *treeParser) expectEOF() error {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return p.wrap(err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return p.errorf("unexpected <%s> after the root element", start.Name.Local)
		}
	}
}

// parseMap reads the children of <map>; exactly one <node> is the root.
func (p *treeParser) parseMap() (*mapmodel.Node, error) {
	var root *mapmodel.Node
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil, p.errorf("unterminated <%s>", elemMap)
		}
		if err != nil {
			return nil, p.wrap(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != elemNode {
				if err := p.dec.Skip(); err != nil {
					return nil, p.wrap(err)
				}
				continue
			}
			if root != nil {
				return nil, p.errorf("map has more than one root node")
			}
			root, err = p.parseNode(t, false)
			if err != nil {
				return nil, err
			}
		case xml.EndElement:
			if root == nil {
				return nil, p.errorf("map has no root node")
			}
			if err := p.expectEOF(); err != nil {
				return nil, err
			}
			return root, nil
		}
	}
}

// parseNode builds a node from start and its subtree. inheritedLeft is the
// side used when the element carries no POSITION.
func (p *treeParser) parseNode(start xml.StartElement, inheritedLeft bool) (*mapmodel.Node, error) {
	node := mapmodel.NewNodeWithID(p.claimID(attr(start, attrID)), attr(start, attrText))

	switch attr(start, attrFolded) {
	case "true":
		node.SetFolded(true)
	case "", "false":
	default:
		p.logger.Debug("ignoring unknown fold value", "node", node.ID(), "value", attr(start, attrFolded))
	}

	left := inheritedLeft
	switch attr(start, attrPosition) {
	case positionLeft:
		left = true
	case positionRight:
		left = false
	}
	node.SetLeft(left)

	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			return nil, p.errorf("unterminated <%s>", elemNode)
		}
		if err != nil {
			return nil, p.wrap(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != elemNode {
				if err := p.dec.Skip(); err != nil {
					return nil, p.wrap(err)
				}
				continue
			}
			child, err := p.parseNode(t, left)
			if err != nil {
				return nil, err
			}
			if err := node.Insert(child, node.ChildCount()); err != nil {
				return nil, p.wrap(err)
			}
		case xml.EndElement:
			return node, nil
		}
	}
}

// claimID keeps id unless it is empty, repeated in the input, or already
// used in the target map.
func (p *treeParser) claimID(id string) string {
	if id == "" || p.seen[id] || (p.target != nil && p.target.FindNode(id) != nil) {
		id = mapmodel.NewID()
	}
	p.seen[id] = true
	return id
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
