package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeText("  a\n\t b   c \n"))
	assert.Equal(t, "", NormalizeText(" \n "))
}

func TestParseConnections(t *testing.T) {
	cases := map[string]string{
		"500+ connections":        "500+",
		"1 connection":            "1",
		"1,024 Connections":       "1,024",
		"See 42 connections here": "42",
		"no count":                "no count",
		"":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseConnections(in), in)
	}
}

func TestFindEmail(t *testing.T) {
	assert.Equal(t, "a.b+c@mail.example.com", FindEmail("write to a.b+c@mail.example.com today"))
	assert.Equal(t, "", FindEmail("no address @ here"))
}

func TestFindPhone(t *testing.T) {
	assert.Equal(t, "+1 (555) 123-4567", FindPhone("call +1 (555) 123-4567 now"))
	assert.Equal(t, "", FindPhone("worked 2015 - 2019"))
	assert.Equal(t, "", FindPhone("room 12345"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 4))
	assert.Equal(t, "hi", Truncate("hi", -1))
}

func TestTitleOf(t *testing.T) {
	assert.Equal(t, "A | B", TitleOf("<html><head><title> A |\n B </title></head></html>"))
	assert.Equal(t, "", TitleOf("<p>x</p>"))
}
