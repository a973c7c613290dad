package task

import "testing"

func TestTaskKey_RoundTrip(t *testing.T) {
	key := TaskKey(KindPlaylistTransfer, 42, "9f7a2c")

	want := "user_tasks:user_initiated_playlist_transfer:42:9f7a2c"
	if key != want {
		t.Fatalf("TaskKey = %q, want %q", key, want)
	}

	kind, userID, taskID, err := ParseTaskKey(key)
	if err != nil {
		t.Fatalf("ParseTaskKey: %v", err)
	}
	if kind != KindPlaylistTransfer || userID != 42 || taskID != "9f7a2c" {
		t.Errorf("ParseTaskKey = (%s, %d, %s)", kind, userID, taskID)
	}
}

func TestParseTaskKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"Wrong prefix", "other_tasks:kind:1:id"},
		{"Too few parts", "user_tasks:kind:1"},
		{"Too many parts", "user_tasks:kind:1:id:extra"},
		{"Non-numeric user", "user_tasks:kind:alice:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParseTaskKey(tt.key); err == nil {
				t.Errorf("ParseTaskKey(%q) accepted invalid key", tt.key)
			}
		})
	}
}

func TestPatterns(t *testing.T) {
	if got, want := UserTasksPattern(7), "user_tasks:*:7:*"; got != want {
		t.Errorf("UserTasksPattern = %q, want %q", got, want)
	}
	if got, want := UserTaskPattern(7, "abc"), "user_tasks:*:7:abc"; got != want {
		t.Errorf("UserTaskPattern = %q, want %q", got, want)
	}
	if got, want := AllTasksPattern(), "user_tasks:*:*:*"; got != want {
		t.Errorf("AllTasksPattern = %q, want %q", got, want)
	}
}
