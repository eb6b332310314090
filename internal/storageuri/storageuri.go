// Package storageuri parses a job's destination/storage URI into a typed
// scheme plus its scheme-specific fields. No transport is implemented here;
// cmd/bar's daemon dispatcher uses ParseURI only to validate a job's
// destination when a run is dispatched.
package storageuri

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Scheme identifies the kind of storage a URI addresses.
type Scheme string

const (
	SchemeLocal Scheme = "local"
	SchemeFTP Scheme = "ftp"
	SchemeSFTP Scheme = "sftp"
	SchemeWebDAV Scheme = "webdav"
	SchemeDevice Scheme = "device"
	SchemeOptical Scheme = "optical"
)

// URI is a parsed storage destination. Host/Port/Login apply to the
// network schemes; Path applies to all schemes (a local filesystem path,
// a remote path, or a device node).
type URI struct {
	Scheme Scheme
	Host string
	Port int
	Login string
	Path string
}

// ParseURI parses raw into a typed URI. A bare path with no "scheme://"
// prefix is treated as SchemeLocal.
func ParseURI(raw string) (*URI, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty storage uri")
	}

	if !strings.Contains(raw, "://") {
		return &URI{Scheme: SchemeLocal, Path: raw}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid storage uri %q: %w", raw, err)
	}

	scheme, err := parseScheme(parsed.Scheme)
	if err != nil {
		return nil, err
	}

	u := &URI{Scheme: scheme, Path: parsed.Path}
	if parsed.User != nil {
		u.Login = parsed.User.Username()
	}
	u.Host = parsed.Hostname()
	if p := parsed.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in storage uri %q: %w", raw, err)
		}
		u.Port = n
	}

	switch scheme {
	case SchemeDevice, SchemeOptical:
		u.Path = strings.TrimPrefix(parsed.Opaque, "")
		if u.Path == "" {
			u.Path = parsed.Path
		}
	}

	return u, nil
}

func parseScheme(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "local", "file":
		return SchemeLocal, nil
	case "ftp":
		return SchemeFTP, nil
	case "sftp":
		return SchemeSFTP, nil
	case "webdav", "webdavs":
		return SchemeWebDAV, nil
	case "device":
		return SchemeDevice, nil
	case "optical", "cd", "dvd", "bd":
		return SchemeOptical, nil
	default:
		return "", fmt.Errorf("unknown storage scheme %q", s)
	}
}
