package mapio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/npratt/mapedit/internal/mapmodel"
)

// ParseErrorPrefix starts the text of the node that replaces an unreadable tree.
const ParseErrorPrefix = "Error while parsing file:"

// ConfirmFunc asks whether a document of unknown version should be converted.
type ConfirmFunc func() bool

// Loader turns files into node trees, converting documents whose version
// signature is not recognized.
type Loader struct {
	reader  *XMLReader
	rules   *Rules
	confirm ConfirmFunc
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRules replaces the built-in version updater.
func WithRules(rules *Rules) LoaderOption {
	return func(l *Loader) { l.rules = rules }
}

// WithConfirm sets the conversion question. Without one, documents are
// always converted.
func WithConfirm(fn ConfirmFunc) LoaderOption {
	return func(l *Loader) { l.confirm = fn }
}

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.rules == nil {
		l.rules = VersionUpdater()
	}
	l.reader = NewXMLReader(l.logger)
	return l
}

// LoadFile reads the tree stored at path. See Load.
func (l *Loader) LoadFile(m *mapmodel.Map, path string) (*mapmodel.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.Load(m, bytes.NewReader(data))
}

// Load reads a whole document from r. Documents starting with a known
// signature are parsed directly. Anything else is converted when the
// confirmation agrees and parsed unchanged otherwise. A document that cannot
// be parsed yields a single node whose text describes the failure; only
// read errors are returned.
func (l *Loader) Load(m *mapmodel.Map, r io.Reader) (*mapmodel.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}

	start, _ := ReadStart(bytes.NewReader(data), len(CurrentSignature()))
	if !HasKnownSignature(start) {
		if l.confirm == nil || l.confirm() {
			var converted bytes.Buffer
			if err := l.rules.Migrate(bytes.NewReader(data), &converted); err != nil {
				return l.errorNode(err), nil
			}
			l.logger.Info("converted map to current version", "rules", l.rules.Name, "version", l.rules.TargetVersion)
			data = converted.Bytes()
		} else {
			l.logger.Warn("loading map without conversion", "start", start)
		}
	}

	root, err := l.reader.CreateNodeTreeFromXML(m, bytes.NewReader(data), ModeFile)
	if err != nil {
		return l.errorNode(err), nil
	}
	return root, nil
}

// IsErrorNode reports whether root is the node that replaces a tree which
// could not be parsed.
func IsErrorNode(root *mapmodel.Node) bool {
	return root != nil && !root.HasChildren() && strings.HasPrefix(root.Text(), ParseErrorPrefix)
}

func (l *Loader) errorNode(err error) *mapmodel.Node {
	text := ParseErrorPrefix + err.Error()
	l.logger.Error("map could not be parsed", "error", err)
	return mapmodel.NewNode(text)
}
