package dataflow

import "testing"

// TestValueAsStringCoercesEveryKind exercises spec.md §4.5's metadata
// extraction contract: every typed parameter kind coerces to a string
// representation for canonical key lookups.
func TestValueAsStringCoercesEveryKind(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"string", StringValue("42"), "42"},
		{"integer", IntValue(42), "42"},
		{"float", FloatValue(3.5), "3.5"},
		{"bool", BoolValue(true), "true"},
		{"list_int", Value{Kind: KindListInt, ListInt: []int64{1, 2, 3}}, "1,2,3"},
		{"list_string", Value{Kind: KindListString, ListString: []string{"a", "b"}}, "a,b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.AsString(); got != tc.want {
				t.Fatalf("AsString() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestIntegerAndStringQuestionIDCoerceToSameValue exercises the property
// called out in spec.md §8.3: an Integer(42) and a String("42") metadata
// value for question_id must be treated as the same id after coercion.
func TestIntegerAndStringQuestionIDCoerceToSameValue(t *testing.T) {
	m1 := Metadata{MetaQuestionID: IntValue(42)}
	m2 := Metadata{MetaQuestionID: StringValue("42")}

	q1, ok1 := m1.StringField(MetaQuestionID)
	q2, ok2 := m2.StringField(MetaQuestionID)

	if !ok1 || !ok2 {
		t.Fatalf("expected both question_id fields present, got ok1=%v ok2=%v", ok1, ok2)
	}
	if q1 != q2 {
		t.Fatalf("Integer(42) coerced to %q, String(\"42\") coerced to %q, want equal", q1, q2)
	}
}

func TestMetadataStringFieldMissingKey(t *testing.T) {
	m := Metadata{}
	if _, ok := m.StringField(MetaQuestionID); ok {
		t.Fatal("expected missing key to report ok=false")
	}
}

func TestValueAsIntFromString(t *testing.T) {
	v := StringValue("42")
	n, ok := v.AsInt()
	if !ok || n != 42 {
		t.Fatalf("AsInt() = (%d, %v), want (42, true)", n, ok)
	}
}
