package wsclient

import "testing"

func TestExtractJSONIDReturnsQuotedStringUnquoted(t *testing.T) {
	id, ok := ExtractJSONID([]byte(`{"id":"abc-123","status":200}`))
	if !ok || id != "abc-123" {
		t.Fatalf("expected id abc-123, got %q ok=%v", id, ok)
	}
}

func TestExtractJSONIDHandlesNumericID(t *testing.T) {
	id, ok := ExtractJSONID([]byte(`{"id":42,"result":null}`))
	if !ok || id != "42" {
		t.Fatalf("expected id 42, got %q ok=%v", id, ok)
	}
}

func TestExtractJSONIDFalseWhenAbsent(t *testing.T) {
	_, ok := ExtractJSONID([]byte(`{"e":"trade","s":"BTCUSDT"}`))
	if ok {
		t.Fatalf("expected no id extracted from push event")
	}
}

func TestExtractJSONIDFalseOnInvalidJSON(t *testing.T) {
	_, ok := ExtractJSONID([]byte(`not json`))
	if ok {
		t.Fatalf("expected false on invalid json")
	}
}
