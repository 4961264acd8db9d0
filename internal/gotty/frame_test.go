package gotty

import (
	"encoding/base64"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"input ascii", Input("ls -la\r"), "1ls -la\r"},
		{"input multibyte", Input("café"), "1caf\xc3\xa9"},
		{"input empty", Input(""), "1"},
		{"resize", Resize(120, 40), "4120,40"},
		{"ping", Ping(), "2"},
		{"pong", Pong(), "3"},
		{"output", Output([]byte("hi")), "1" + base64.StdEncoding.EncodeToString([]byte("hi"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDecodeOutput(t *testing.T) {
	f, err := Decode([]byte("1" + base64.StdEncoding.EncodeToString([]byte("hi"))))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Kind != KindOutput || f.Text != "hi" {
		t.Errorf("got %+v, want output \"hi\"", f)
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	msg := []byte("1" + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0x80}))
	_, err := Decode(msg)
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("err = %v, want ErrInvalidUTF8", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Tag != '1' {
		t.Errorf("err = %#v, want *DecodeError with tag '1'", err)
	}
}

func TestDecodeBadBase64(t *testing.T) {
	_, err := Decode([]byte("1!!not base64!!"))
	if !errors.Is(err, ErrBadBase64) {
		t.Fatalf("err = %v, want ErrBadBase64", err)
	}
}

func TestDecodeControlFrames(t *testing.T) {
	tests := []struct {
		msg  string
		kind Kind
	}{
		{"2", KindPing},
		{"3", KindPong},
		{"4", KindResize},
		{"480,24", KindResize},
		{"4garbage", KindResize},
	}
	for _, tt := range tests {
		f, err := Decode([]byte(tt.msg))
		if err != nil {
			t.Errorf("Decode(%q): %v", tt.msg, err)
			continue
		}
		if f.Kind != tt.kind {
			t.Errorf("Decode(%q).Kind = %v, want %v", tt.msg, f.Kind, tt.kind)
		}
	}

	f, _ := Decode([]byte("480,24"))
	if f.Cols != 80 || f.Rows != 24 {
		t.Errorf("server resize parsed as %dx%d, want 80x24", f.Cols, f.Rows)
	}
}

func TestDecodeEmptyAndUnknown(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Decode(nil) err = %v, want ErrEmpty", err)
	}
	if _, err := Decode([]byte("9payload")); !errors.Is(err, ErrUnknownTag) {
		t.Errorf("Decode(9...) err = %v, want ErrUnknownTag", err)
	}
}

func TestDecodeClient(t *testing.T) {
	f, err := DecodeClient(Resize(132, 43))
	if err != nil {
		t.Fatalf("DecodeClient: %v", err)
	}
	if f.Kind != KindResize || f.Cols != 132 || f.Rows != 43 {
		t.Errorf("got %+v, want resize 132x43", f)
	}

	if _, err := DecodeClient([]byte("4 80, 24")); !errors.Is(err, ErrBadResize) {
		t.Errorf("whitespace resize err = %v, want ErrBadResize", err)
	}

	f, err = DecodeClient(Input("q"))
	if err != nil || f.Kind != KindInput || f.Text != "q" {
		t.Errorf("DecodeClient(input) = %+v, %v", f, err)
	}
}

// loopback plays the part of a gotty server that echoes input as output.
func loopback(t *testing.T, msg []byte) []byte {
	t.Helper()
	in, err := DecodeClient(msg)
	if err != nil {
		t.Fatalf("server decode: %v", err)
	}
	return Output(in.Data)
}

func TestRoundTripMultibyte(t *testing.T) {
	const text = "café 😀"
	f, err := Decode(loopback(t, Input(text)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Text != text {
		t.Errorf("round trip = %q, want %q", f.Text, text)
	}
}

func TestRoundTripProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("input echoed as output decodes to the same text", prop.ForAll(
		func(text string) bool {
			f, err := Decode(loopback(t, Input(text)))
			return err == nil && f.Kind == KindOutput && f.Text == text
		},
		gen.AnyString().SuchThat(utf8.ValidString),
	))

	properties.Property("resize payload parses back", prop.ForAll(
		func(cols, rows int) bool {
			f, err := DecodeClient(Resize(cols, rows))
			return err == nil && f.Cols == cols && f.Rows == rows
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}
