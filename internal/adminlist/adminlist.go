// Package adminlist implements the admin group/member file-format loader:
// plain-text sources of the form
//
//	Group=<name>:<permCsv>
//	Admin=<steamID|eosID>:<groupName>
//
// with `//` and `#` comments and unknown lines ignored with a warning.
// Sources are a local path, a remote URL, or a remote filesystem path.
// Remote fetch is grounded on internal/core/remote_ban_sync.go's
// fetch-then-line-scan shape: a bounded-timeout net/http GET followed by a
// bufio.Scanner over the response body.
package adminlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/ident"
)

// Group is a named set of permissions.
type Group struct {
	Name        string
	Permissions map[string]struct{}
}

// Has reports whether the group grants perm, honoring the "*" wildcard.
func (g Group) Has(perm string) bool {
	if _, ok := g.Permissions["*"]; ok {
		return true
	}
	_, ok := g.Permissions[perm]
	return ok
}

// Member is one admin entry, identified by either a Steam64 ID or an EOS ID.
type Member struct {
	SteamID    ident.SteamID
	HasSteamID bool
	EOSID      ident.EOSID
	HasEOSID   bool
	GroupName  string
}

// List is the parsed contents of one or more admin list sources: groups
// keyed by name, and the flat member list naming each admin's group.
type List struct {
	Groups  map[string]Group
	Members []Member
}

// Warning is a single non-fatal parse problem: an unknown line shape, or a
// member that names a group that was never declared.
type Warning struct {
	Source string
	Line   int
	Text   string
}

// Source names where one admin list is fetched from. Exactly one of the
// three fields is set.
type Source struct {
	LocalPath    string
	RemoteURL    string
	RemoteFSPath string
}

// FetchTimeout bounds a single remote source's HTTP round trip.
const FetchTimeout = 15 * time.Second

// Load fetches and parses every source, merging their groups and members
// into a single List. Later sources' group definitions overwrite earlier
// ones of the same name; member lists are concatenated. Warnings from all
// sources are returned alongside the merged list; Load only returns an error
// when a source cannot be read at all (its contents, however malformed, are
// always merged on a best-effort basis).
func Load(ctx context.Context, sources []Source, client *http.Client) (List, []Warning, error) {
	merged := List{Groups: make(map[string]Group)}
	var warnings []Warning

	for _, src := range sources {
		body, label, err := fetch(ctx, src, client)
		if err != nil {
			return merged, warnings, err
		}
		list, srcWarnings := parse(label, body)
		body.Close()

		for name, g := range list.Groups {
			merged.Groups[name] = g
		}
		merged.Members = append(merged.Members, list.Members...)
		warnings = append(warnings, srcWarnings...)
	}

	for i, m := range merged.Members {
		if _, ok := merged.Groups[m.GroupName]; !ok {
			warnings = append(warnings, Warning{Line: i, Text: fmt.Sprintf("admin entry references unknown group %q", m.GroupName)})
		}
	}

	return merged, warnings, nil
}

func fetch(ctx context.Context, src Source, client *http.Client) (io.ReadCloser, string, error) {
	switch {
	case src.LocalPath != "":
		f, err := os.Open(src.LocalPath)
		if err != nil {
			return nil, src.LocalPath, errs.Wrap(errs.KindFileNotFound, err, "adminlist: open local source %q", src.LocalPath)
		}
		return f, src.LocalPath, nil

	case src.RemoteFSPath != "":
		f, err := os.Open(src.RemoteFSPath)
		if err != nil {
			return nil, src.RemoteFSPath, errs.Wrap(errs.KindFileNotFound, err, "adminlist: open remote-fs source %q", src.RemoteFSPath)
		}
		return f, src.RemoteFSPath, nil

	case src.RemoteURL != "":
		if client == nil {
			client = &http.Client{Timeout: FetchTimeout}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.RemoteURL, nil)
		if err != nil {
			return nil, src.RemoteURL, errs.Wrap(errs.KindParseError, err, "adminlist: build request for %q", src.RemoteURL)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, src.RemoteURL, errs.Wrap(errs.KindConnectionRefused, err, "adminlist: fetch %q", src.RemoteURL)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, src.RemoteURL, errs.New(errs.KindConnectionRefused, "adminlist: unexpected status fetching admin list", "url", src.RemoteURL, "status", resp.StatusCode)
		}
		return resp.Body, src.RemoteURL, nil

	default:
		return nil, "", errs.New(errs.KindOptionsValidation, "adminlist: source names neither a local path, a remote URL, nor a remote fs path")
	}
}

func parse(sourceLabel string, body io.Reader) (List, []Warning) {
	list := List{Groups: make(map[string]Group)}
	var warnings []Warning

	scanner := bufio.NewScanner(body)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Group="):
			g, ok := parseGroupLine(line)
			if !ok {
				warnings = append(warnings, Warning{Source: sourceLabel, Line: lineNo, Text: "malformed Group= line: " + line})
				continue
			}
			list.Groups[g.Name] = g

		case strings.HasPrefix(line, "Admin="):
			m, ok := parseAdminLine(line)
			if !ok {
				warnings = append(warnings, Warning{Source: sourceLabel, Line: lineNo, Text: "malformed Admin= line: " + line})
				continue
			}
			list.Members = append(list.Members, m)

		default:
			warnings = append(warnings, Warning{Source: sourceLabel, Line: lineNo, Text: "unrecognized line: " + line})
		}
	}

	return list, warnings
}

func parseGroupLine(line string) (Group, bool) {
	rest, ok := strings.CutPrefix(line, "Group=")
	if !ok {
		return Group{}, false
	}
	name, permCsv, ok := strings.Cut(rest, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Group{}, false
	}

	perms := make(map[string]struct{})
	for _, p := range strings.Split(permCsv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			perms[p] = struct{}{}
		}
	}
	return Group{Name: name, Permissions: perms}, true
}

func parseAdminLine(line string) (Member, bool) {
	rest, ok := strings.CutPrefix(line, "Admin=")
	if !ok {
		return Member{}, false
	}
	idStr, groupName, ok := strings.Cut(rest, ":")
	idStr = strings.TrimSpace(idStr)
	groupName = strings.TrimSpace(groupName)
	if !ok || idStr == "" || groupName == "" {
		return Member{}, false
	}

	m := Member{GroupName: groupName}
	if sid, ok := ident.NewSteamID(idStr); ok {
		m.SteamID = sid
		m.HasSteamID = true
		return m, true
	}
	if eid, ok := ident.NewEOSID(idStr); ok {
		m.EOSID = eid
		m.HasEOSID = true
		return m, true
	}
	return Member{}, false
}
