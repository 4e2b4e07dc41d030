package pubsub

import "testing"

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"curio", "topics", "curio-notifications", "projects/curio/topics/curio-notifications"},
		{"curio", "subscriptions", " worker ", "projects/curio/subscriptions/worker"},
		{"curio", "topics", "projects/other/topics/t1", "projects/other/topics/t1"},
		{"", "topics", "t1", ""},
		{"curio", "topics", "", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, tc.kind, tc.name); got != tc.want {
			t.Fatalf("resourceName(%q,%q,%q) = %q, want %q", tc.project, tc.kind, tc.name, got, tc.want)
		}
	}
}
