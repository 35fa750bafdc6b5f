package types

import "testing"

func TestPath_String(t *testing.T) {
	cases := []struct {
		path Path
		want string
	}{
		{Path{}, "<root>"},
		{Path{Field("x")}, "x"},
		{Path{Field("items"), Index(3), Field("name")}, "items[3].name"},
		{Path{Index(0), Index(1)}, "[0][1]"},
	}

	for _, tc := range cases {
		if got := tc.path.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	base := Path{Field("a")}
	first := base.Child(Field("b"))
	second := base.Child(Field("c"))

	if first.String() != "a.b" {
		t.Errorf("first = %q, want a.b", first.String())
	}
	if second.String() != "a.c" {
		t.Errorf("second = %q, want a.c", second.String())
	}
	if base.Depth() != 1 {
		t.Errorf("base depth = %d, want 1", base.Depth())
	}
}
