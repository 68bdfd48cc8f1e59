package domain

import (
	"reflect"
	"testing"
)

func TestStringList_ValueScan(t *testing.T) {
	v, err := StringList{"a", "b"}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back StringList
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !reflect.DeepEqual(back, StringList{"a", "b"}) {
		t.Fatalf("round trip mismatch: %#v", back)
	}

	// nil list stores as an empty JSON array, not NULL
	v, err = StringList(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("nil list Value = %v, %v", v, err)
	}

	// NULL column scans to empty
	var fromNull StringList
	if err := fromNull.Scan(nil); err != nil || len(fromNull) != 0 {
		t.Fatalf("scan NULL: %v %#v", err, fromNull)
	}
}

func TestReactionMap_ValueScan(t *testing.T) {
	v, err := ReactionMap{"him": "❤️"}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var back ReactionMap
	if err := back.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back["him"] != "❤️" {
		t.Fatalf("round trip mismatch: %#v", back)
	}

	if v, err := ReactionMap(nil).Value(); err != nil || v != "{}" {
		t.Fatalf("nil map Value = %v, %v", v, err)
	}
}
