package submission

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func keys(f Fields) string {
	var ks []string
	for _, fd := range f {
		ks = append(ks, fd.Key+"="+fd.Value)
	}
	return strings.Join(ks, "&")
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"order kept", "zeta=1&alpha=2&mid=3", "zeta=1&alpha=2&mid=3"},
		{"decoding", "name=Jo+Smith&msg=a%26b%3Dc", "name=Jo Smith&msg=a&b=c"},
		{"repeat keeps position takes last", "a=1&b=2&a=3", "a=3&b=2"},
		{"empty value and bare key", "a=&b", "a=&b="},
		{"empty pairs skipped", "&&a=1&", "a=1"},
		{"bad escape kept literally", "a=%zz&b=2", "a=%zz&b=2"},
		{"stray percent", "message=I+am+100%+sure+friend", "message=I am 100% sure friend"},
		{"valid escapes around stray percent", "m=%41%+50%25", "m=A% 50%"},
		{"empty key skipped", "=x&b=2", "b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForm(strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("ParseForm: %v", err)
			}
			if keys(got) != tt.want {
				t.Errorf("got %q, want %q", keys(got), tt.want)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON(strings.NewReader(`{"name":"Jo","age":42,"ok":true,"gone":null,"msg":"a\nb","name":"Jo2"}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if want := "name=Jo2&age=42&ok=true&msg=a\nb"; keys(got) != want {
		t.Errorf("got %q, want %q", keys(got), want)
	}

	for _, body := range []string{`[1,2]`, `{"a":{"b":1}}`, `{"a":[1]}`, `{"a":`, `"x"`} {
		if _, err := ParseJSON(strings.NewReader(body)); !errors.Is(err, ErrUnsupportedJSON) {
			t.Errorf("ParseJSON(%s) err = %v, want ErrUnsupportedJSON", body, err)
		}
	}
}

func TestParseJSON_KeepsReadError(t *testing.T) {
	body := `{"message":"` + strings.Repeat("x", 4096) + `"}`
	r := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(strings.NewReader(body)), 1024)

	_, err := ParseJSON(r)
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		t.Fatalf("err = %v, want *http.MaxBytesError", err)
	}
	if !errors.Is(err, ErrUnsupportedJSON) {
		t.Errorf("err = %v, want ErrUnsupportedJSON too", err)
	}
}

func TestFieldsGetSet(t *testing.T) {
	var f Fields
	f.Set("a", "1")
	f.Set("b", "2")
	f.Set("a", "3")
	if v, ok := f.Get("a"); !ok || v != "3" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := f.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
	if f[0].Key != "a" {
		t.Errorf("order changed: %v", f)
	}
}
