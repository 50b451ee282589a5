package spiceerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesCategory(t *testing.T) {
	err := Auth("bad ticket")
	if !Is(err, CategoryAuth) {
		t.Fatal("Is should match the category the error was built with")
	}
	if Is(err, CategoryIO) {
		t.Fatal("Is should not match an unrelated category")
	}
}

func TestIsUnwrapsPlainErrors(t *testing.T) {
	if Is(errors.New("plain"), CategoryProtocol) {
		t.Fatal("Is should return false for an error with no Category")
	}
}

func TestIsSeesThroughWrapping(t *testing.T) {
	base := IO("connection reset")
	wrapped := fmt.Errorf("dial: %w", base)
	if !Is(wrapped, CategoryIO) {
		t.Fatal("Is should see through fmt.Errorf %w wrapping")
	}
}

func TestErrorMessageFormatsLikeFmtErrorf(t *testing.T) {
	err := Codec("unexpected literal length %d", 42)
	want := "unexpected literal length 42"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCategoryConstructors(t *testing.T) {
	cases := []struct {
		build func(string, ...any) error
		want  Category
	}{
		{Protocol, CategoryProtocol},
		{Codec, CategoryCodec},
		{IO, CategoryIO},
		{Auth, CategoryAuth},
		{Resource, CategoryResource},
		{Cancelled, CategoryCancelled},
	}
	for _, c := range cases {
		err := c.build("x")
		if !Is(err, c.want) {
			t.Fatalf("constructor for %v did not tag its Category", c.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	if CategoryAuth.String() != "auth" {
		t.Fatalf("String() = %q, want %q", CategoryAuth.String(), "auth")
	}
	if Category(99).String() != "unknown" {
		t.Fatalf("unknown category should stringify to %q", "unknown")
	}
}
