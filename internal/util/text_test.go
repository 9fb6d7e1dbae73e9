package util

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim and upper", input: " tipo_documento  ", want: "TIPO_DOCUMENTO"},
		{name: "tabs collapse", input: "fecha\t\tnacimiento", want: "FECHA NACIMIENTO"},
		{name: "bom", input: "\uFEFFidentificacion", want: "IDENTIFICACION"},
		{name: "decomposed accent", input: "poblacio\u0301n", want: "POBLACI\u00d3N"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeHeader(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if again := NormalizeHeader(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestIsDigits(t *testing.T) {
	if !IsDigits("0123") {
		t.Fatal("0123 should be digits")
	}
	for _, s := range []string{"", "12a", " 12", "-1", "1.5"} {
		if IsDigits(s) {
			t.Fatalf("%q should not be digits", s)
		}
	}
}

func TestLeftPad(t *testing.T) {
	if got := LeftPad("3", 2); got != "03" {
		t.Fatalf("got %q", got)
	}
	if got := LeftPad("123", 2); got != "123" {
		t.Fatalf("got %q", got)
	}
}
