package workflow

import "testing"

func TestRequireStringMissingKey(t *testing.T) {
	if _, err := requireString(map[string]interface{}{}, "some_action", "target_disk_id"); err == nil {
		t.Fatal("expected missing required param to error")
	}
}

func TestRequireStringEmptyValue(t *testing.T) {
	params := map[string]interface{}{"target_disk_id": ""}
	if _, err := requireString(params, "some_action", "target_disk_id"); err == nil {
		t.Fatal("expected empty required param to error")
	}
}

func TestBoolParamDefaultsWhenMissing(t *testing.T) {
	if got := boolParam(map[string]interface{}{}, "verify", true); got != true {
		t.Fatalf("expected default true, got %v", got)
	}
}

func TestIntParamHandlesJSONNumberTypes(t *testing.T) {
	cases := []interface{}{1, int64(1), float64(1)}
	for _, v := range cases {
		params := map[string]interface{}{"image_index": v}
		if got := intParam(params, "image_index", 0); got != 1 {
			t.Fatalf("intParam(%T) = %d, want 1", v, got)
		}
	}
}
