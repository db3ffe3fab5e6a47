// Package twiml renders an ivr.ActionList as a TwiML voice response.
package twiml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/flowpbx/phonetree/internal/ivr"
)

// ContentType is the media type of a rendered response.
const ContentType = "application/xml"

// verb is a single TwiML element.
type verb struct {
	name     string
	attrs    []xml.Attr
	text     string
	children []verb
}

// MarshalXML writes the verb and its children. The start element passed in
// by the encoder is ignored; verbs carry their own names.
func (v verb) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: v.name}, Attr: v.attrs}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if v.text != "" {
		if err := e.EncodeToken(xml.CharData(v.text)); err != nil {
			return err
		}
	}
	for _, child := range v.children {
		if err := e.Encode(child); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Encode writes the XML declaration and a <Response> holding one verb per
// action, in order.
func Encode(w io.Writer, actions ivr.ActionList) error {
	root := verb{name: "Response"}
	for i, a := range actions {
		v, err := toVerb(a)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		root.children = append(root.children, v)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return enc.Flush()
}

// Marshal renders actions into a byte slice.
func Marshal(actions ivr.ActionList) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, actions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toVerb(a ivr.Action) (verb, error) {
	switch a.Kind {
	case ivr.KindSpeak:
		return verb{name: "Say", text: a.Text}, nil
	case ivr.KindPause:
		return verb{name: "Pause"}, nil
	case ivr.KindRecord:
		return verb{name: "Record"}, nil
	case ivr.KindDial:
		return verb{name: "Dial", text: a.Number}, nil
	case ivr.KindEnqueue:
		return verb{name: "Enqueue", text: a.Queue}, nil
	case ivr.KindCollectDigits:
		g := verb{name: "Gather"}
		if a.ContinueOnEmpty {
			g.attrs = append(g.attrs, xml.Attr{Name: xml.Name{Local: "actionOnEmptyResult"}, Value: "true"})
		}
		if a.NumDigits > 0 {
			g.attrs = append(g.attrs, xml.Attr{Name: xml.Name{Local: "numDigits"}, Value: strconv.Itoa(a.NumDigits)})
		}
		for _, p := range a.Prompts {
			if p.Kind == ivr.KindCollectDigits {
				return verb{}, fmt.Errorf("nested %s is not allowed inside Gather", p.Kind)
			}
			child, err := toVerb(p)
			if err != nil {
				return verb{}, err
			}
			g.children = append(g.children, child)
		}
		return g, nil
	default:
		return verb{}, fmt.Errorf("unsupported action kind %q", a.Kind)
	}
}
