package mapio

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/mapmodel"
)

// XMLWriter serializes maps and subtrees.
type XMLWriter struct {
	saveFolding config.SaveFolding
	skipIDs     bool
}

// NewXMLWriter creates a writer honoring the fold and ID policies of cfg.
func NewXMLWriter(editing config.EditingConfig, save config.SaveConfig) *XMLWriter {
	return &XMLWriter{
		saveFolding: editing.SaveFolding,
		skipIDs:     save.OnlyIntrinsicallyNeededIDs,
	}
}

// Write serializes m. ModeFile produces a whole <map> document;
// ModeClipboard produces only the root's <node> element.
func (w *XMLWriter) Write(m *mapmodel.Map, out io.Writer, mode Mode) error {
	return w.WriteNode(m.Root(), out, mode)
}

// WriteNode serializes the subtree below node. In ModeFile the subtree is
// wrapped in a <map> element as if node were the root.
func (w *XMLWriter) WriteNode(node *mapmodel.Node, out io.Writer, mode Mode) error {
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")

	if mode == ModeFile {
		start := xml.StartElement{
			Name: xml.Name{Local: elemMap},
			Attr: []xml.Attr{{Name: xml.Name{Local: attrVersion}, Value: CurrentVersion}},
		}
		if err := enc.EncodeToken(start); err != nil {
			return fmt.Errorf("write map: %w", err)
		}
	}

	if err := w.encodeNode(enc, node, 0, mode); err != nil {
		return err
	}

	if mode == ModeFile {
		if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: elemMap}}); err != nil {
			return fmt.Errorf("write map: %w", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// encodeNode writes node at depth below the written top. POSITION is only
// meaningful on the first level, and on the top of a clipboard fragment.
func (w *XMLWriter) encodeNode(enc *xml.Encoder, node *mapmodel.Node, depth int, mode Mode) error {
	var attrs []xml.Attr
	add := func(name, value string) {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	}

	add(attrText, node.Text())
	if !w.skipIDs {
		add(attrID, node.ID())
	}
	if node.IsFolded() && w.saveFolding != config.SaveFoldingNever {
		add(attrFolded, strconv.FormatBool(true))
	}
	if depth == 1 || (depth == 0 && mode == ModeClipboard) {
		if node.IsLeft() {
			add(attrPosition, positionLeft)
		} else {
			add(attrPosition, positionRight)
		}
	}

	start := xml.StartElement{Name: xml.Name{Local: elemNode}, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("write node %s: %w", node.ID(), err)
	}
	for _, child := range node.Children() {
		if err := w.encodeNode(enc, child, depth+1, mode); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("write node %s: %w", node.ID(), err)
	}
	return nil
}

// WriteFile saves m to path through a temporary file in the same directory,
// so readers never observe a partial document.
func (w *XMLWriter) WriteFile(m *mapmodel.Map, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := w.Write(m, tmp, ModeFile); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
