package parser

import (
	"regexp"
	"strings"
)

var (
	currentMapRe = regexp.MustCompile(`^Current level is (.*), layer is (.*)$`)
	nextMapRe    = regexp.MustCompile(`^Next level is (.*), layer is (.*)$`)
)

// ParseShowCurrentMap parses a ShowCurrentMap response body.
func ParseShowCurrentMap(body string) (MapInfo, error) {
	body = strings.TrimSpace(body)
	m := currentMapRe.FindStringSubmatch(body)
	if m == nil {
		return MapInfo{}, &ParseError{Kind: ErrUnexpectedFormat, Field: "ShowCurrentMap", RawSample: body}
	}
	return MapInfo{Level: m[1], Layer: m[2], HasLayer: m[2] != ""}, nil
}

// ParseShowNextMap parses a ShowNextMap response body. The sentinel "To be voted"
// and an empty body both yield a null layer.
func ParseShowNextMap(body string) (MapInfo, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return MapInfo{}, nil
	}
	m := nextMapRe.FindStringSubmatch(body)
	if m == nil {
		return MapInfo{}, &ParseError{Kind: ErrUnexpectedFormat, Field: "ShowNextMap", RawSample: body}
	}
	layer := m[2]
	if layer == "To be voted" {
		return MapInfo{Level: m[1]}, nil
	}
	return MapInfo{Level: m[1], Layer: layer, HasLayer: layer != ""}, nil
}
