package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Node is one value in a JSON-like payload template tree. Object fields keep
// their declaration order so expanded payloads serialize byte-stable apart
// from substituted values.
type Node struct {
	Kind   Kind
	Str    string
	Num    float64
	Bool   bool
	Fields []Field
	Items  []Node
}

// Field is a named member of an object Node.
type Field struct {
	Name  string
	Value Node
}

// Parse decodes JSON text into a template tree.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := decodeValue(dec)
	if err != nil {
		return Node{}, err
	}

	// Reject trailing garbage after the first value.
	if _, err := dec.Token(); err == nil {
		return Node{}, fmt.Errorf("unexpected data after JSON value")
	}
	return node, nil
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Node, error) {
	switch v := tok.(type) {
	case nil:
		return Node{Kind: KindNull}, nil
	case string:
		return Node{Kind: KindString, Str: v}, nil
	case bool:
		return Node{Kind: KindBool, Bool: v}, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Node{}, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return Node{Kind: KindNumber, Num: f}, nil
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
	}
	return Node{}, fmt.Errorf("unexpected JSON token %v", tok)
}

func decodeObject(dec *json.Decoder) (Node, error) {
	node := Node{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Node{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Node{}, fmt.Errorf("object key must be a string, got %v", keyTok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return Node{}, err
		}
		node.Fields = append(node.Fields, Field{Name: key, Value: value})
	}
	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return Node{}, err
	}
	return node, nil
}

func decodeArray(dec *json.Decoder) (Node, error) {
	node := Node{Kind: KindArray}
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Node{}, err
		}
		node.Items = append(node.Items, item)
	}
	if _, err := dec.Token(); err != nil {
		return Node{}, err
	}
	return node, nil
}

// JSON serializes the tree back to JSON, preserving object field order.
func (n Node) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler so a Node can sit inside larger
// encodable structures.
func (n Node) MarshalJSON() ([]byte, error) {
	return n.JSON()
}

func writeJSON(buf *bytes.Buffer, n Node) error {
	switch n.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		encoded, err := json.Marshal(n.Str)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(n.Num, 'f', -1, 64))
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.Bool))
	case KindObject:
		buf.WriteByte('{')
		for i, field := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(field.Name)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := writeJSON(buf, field.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unknown node kind %d", n.Kind)
	}
	return nil
}
