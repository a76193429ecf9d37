package mapio

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed version_updater.yaml
var versionUpdaterYAML []byte

// Rules is a declarative document transformation loaded from YAML.
type Rules struct {
	Name             string                       `yaml:"name"`
	TargetVersion    string                       `yaml:"target_version"`
	RenameElements   map[string]string            `yaml:"rename_elements"`
	RenameAttributes map[string]map[string]string `yaml:"rename_attributes"`
	ValueMaps        map[string]map[string]string `yaml:"value_maps"`
	DropElements     []string                     `yaml:"drop_elements"`
}

// ParseRules decodes a rule set.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse migration rules: %w", err)
	}
	if rules.Name == "" {
		return nil, errors.New("parse migration rules: missing name")
	}
	return &rules, nil
}

// VersionUpdater returns the built-in rules that bring an unknown document
// to CurrentVersion.
func VersionUpdater() *Rules {
	rules, err := ParseRules(versionUpdaterYAML)
	if err != nil {
		panic(err)
	}
	return rules
}

// Migrate streams the document from r to w, applying the rules to every
// element. The XML declaration is dropped so the result starts with the
// version signature.
func (rules *Rules) Migrate(r io.Reader, w io.Writer) error {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity
	enc := xml.NewEncoder(w)

	drop := make(map[string]bool, len(rules.DropElements))
	for _, name := range rules.DropElements {
		drop[name] = true
	}

	var open []xml.Name
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Line: lineOf(dec), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if drop[t.Name.Local] {
				if err := dec.Skip(); err != nil {
					return &ParseError{Line: lineOf(dec), Err: err}
				}
				continue
			}
			t = rules.apply(t)
			open = append(open, t.Name)
			tok = t
		case xml.EndElement:
			if len(open) == 0 {
				return &ParseError{Line: lineOf(dec), Err: fmt.Errorf("unexpected </%s>", t.Name.Local)}
			}
			tok = xml.EndElement{Name: open[len(open)-1]}
			open = open[:len(open)-1]
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
		case xml.CharData:
			if len(open) == 0 && len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		}

		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if err := enc.Flush(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// apply renames the element and its attributes and rewrites mapped values.
func (rules *Rules) apply(el xml.StartElement) xml.StartElement {
	name := el.Name.Local
	if renamed, ok := rules.RenameElements[name]; ok {
		name = renamed
	}

	renames := rules.RenameAttributes[name]
	attrs := make([]xml.Attr, 0, len(el.Attr))
	seen := make(map[string]bool, len(el.Attr))
	for _, a := range el.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrName := a.Name.Local
		if renamed, ok := renames[attrName]; ok {
			attrName = renamed
		}
		if seen[attrName] {
			continue
		}
		seen[attrName] = true

		if name == "map" && attrName == "version" && rules.TargetVersion != "" {
			continue
		}

		value := a.Value
		if mapped, ok := rules.ValueMaps[attrName][value]; ok {
			value = mapped
		}
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: attrName}, Value: value})
	}
	// The version must stay the first attribute for the signature to match.
	if name == "map" && rules.TargetVersion != "" {
		attrs = append([]xml.Attr{{Name: xml.Name{Local: "version"}, Value: rules.TargetVersion}}, attrs...)
	}

	return xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
}

func lineOf(dec *xml.Decoder) int {
	line, _ := dec.InputPos()
	return line
}
