package legacypatch

import "testing"

func TestUpdatePlistArraysCreatesMissingArray(t *testing.T) {
	doc := map[string]interface{}{}
	changed := updatePlistArrays(doc, []string{"SupportedModels"}, "MacBookPro99,1")
	if !changed {
		t.Fatal("expected change when key is absent")
	}
	arr, ok := doc["SupportedModels"].([]interface{})
	if !ok || len(arr) != 1 || arr[0] != "MacBookPro99,1" {
		t.Fatalf("unexpected array contents: %#v", doc["SupportedModels"])
	}
}

func TestUpdatePlistArraysIsIdempotent(t *testing.T) {
	doc := map[string]interface{}{
		"SupportedModels": []interface{}{"MacBookPro99,1"},
	}
	changed := updatePlistArrays(doc, []string{"SupportedModels"}, "MacBookPro99,1")
	if changed {
		t.Fatal("expected no change when entry already present")
	}
	arr := doc["SupportedModels"].([]interface{})
	if len(arr) != 1 {
		t.Fatalf("expected array to stay length 1, got %d", len(arr))
	}
}

func TestUpdatePlistArraysAppendsNewEntry(t *testing.T) {
	doc := map[string]interface{}{
		"BoardIDs": []interface{}{"Mac-EXISTING"},
	}
	changed := updatePlistArrays(doc, []string{"BoardIDs"}, "Mac-NEW")
	if !changed {
		t.Fatal("expected change when entry is new")
	}
	arr := doc["BoardIDs"].([]interface{})
	if len(arr) != 2 {
		t.Fatalf("expected array length 2, got %d", len(arr))
	}
}

func TestIsInstallAppRequiresCreateInstallMedia(t *testing.T) {
	dir := t.TempDir()
	if isInstallApp(dir) {
		t.Fatal("plain directory should not be recognized as an install app")
	}
}
