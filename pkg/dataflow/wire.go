// Package dataflow implements the Dataflow Dispatcher and the wire codec
// per-node bridges use to talk to the external graph: lifecycle control over
// a launched dataflow process, and a typed-parameter metadata contract that
// every bridge coerces the same way (spec.md §4.4, §4.5, §6.4).
package dataflow

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ValueKind tags the wire representation of one typed parameter (spec.md
// §4.5 "Metadata extraction contract").
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindInteger    ValueKind = "integer"
	KindFloat      ValueKind = "float"
	KindBool       ValueKind = "bool"
	KindListInt    ValueKind = "list_int"
	KindListFloat  ValueKind = "list_float"
	KindListString ValueKind = "list_string"
)

// Value is one typed wire parameter. Exactly one of the fields matching Kind
// is meaningful.
type Value struct {
	Kind       ValueKind  `json:"kind"`
	Str        string     `json:"str,omitempty"`
	Int        int64      `json:"int,omitempty"`
	Float      float64    `json:"float,omitempty"`
	Bool       bool       `json:"bool,omitempty"`
	ListInt    []int64    `json:"list_int,omitempty"`
	ListFloat  []float64  `json:"list_float,omitempty"`
	ListString []string   `json:"list_string,omitempty"`
}

// StringValue, IntValue, FloatValue, and BoolValue build single-scalar
// Values of the matching kind.
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInteger, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }

// AsString coerces any Value kind to its string representation. This is the
// contract every bridge must apply before looking up a canonical metadata
// key: question_id is commonly Integer, and a bridge that only recognizes
// String drops it and breaks turn coordination (spec.md §4.5).
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindListInt:
		parts := make([]string, len(v.ListInt))
		for i, n := range v.ListInt {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ",")
	case KindListFloat:
		parts := make([]string, len(v.ListFloat))
		for i, n := range v.ListFloat {
			parts[i] = strconv.FormatFloat(n, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	case KindListString:
		return strings.Join(v.ListString, ",")
	default:
		return ""
	}
}

// AsInt coerces a Value to an int64, accepting String, Integer, and Float
// kinds.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case KindInteger:
		return v.Int, true
	case KindFloat:
		return int64(v.Float), true
	case KindString:
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Metadata is the typed-parameter bag attached to every wire event.
type Metadata map[string]Value

// StringField coerces the named field to a string per the metadata
// extraction contract, reporting whether the key was present at all.
func (m Metadata) StringField(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return v.AsString(), true
}

// Canonical metadata keys every bridge recognizes (spec.md §4.5, §6.4).
const (
	MetaQuestionID     = "question_id"
	MetaParticipant    = "participant"
	MetaSessionStatus  = "session_status"
	MetaSampleRate     = "sample_rate"
)

// Envelope is one newline-framed wire message: an output port name, an
// optional f32 sample payload, and its typed metadata.
type Envelope struct {
	Node     string   `json:"node"`
	Output   string   `json:"output"`
	Samples  []float32 `json:"samples,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// NodeConn is one per-node wire connection: a websocket transport carrying
// newline-framed JSON envelopes, standing in for the dataflow graph's native
// Arrow-format edges at this boundary.
type NodeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialNode opens a NodeConn to a node's wire endpoint.
func DialNode(ctx context.Context, endpoint string) (*NodeConn, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("dataflow: invalid node endpoint %q: %w", endpoint, err)
	}
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dataflow: dial node %q: %w", endpoint, err)
	}
	return &NodeConn{conn: conn}, nil
}

// Send writes one envelope as a JSON text message.
func (c *NodeConn) Send(ctx context.Context, e Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wsjson.Write(ctx, c.conn, e); err != nil {
		return fmt.Errorf("dataflow: write envelope: %w", err)
	}
	return nil
}

// Receive blocks for the next envelope.
func (c *NodeConn) Receive(ctx context.Context) (Envelope, error) {
	var e Envelope
	if err := wsjson.Read(ctx, c.conn, &e); err != nil {
		return Envelope{}, fmt.Errorf("dataflow: read envelope: %w", err)
	}
	return e, nil
}

// Close closes the underlying connection.
func (c *NodeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
