package dbengine

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ncruces/go-sqlite3"
)

func init() {
	sqlite3.AutoExtension(registerFunctions)
}

// registerFunctions installs the engine's helper SQL functions on a freshly
// opened connection: unixtimestamp, regexp, dirname.
func registerFunctions(conn *sqlite3.Conn) error {
	if err := conn.CreateFunction("unixtimestamp", -1, sqlite3.DETERMINISTIC, sqlUnixTimestamp); err != nil {
		return err
	}
	if err := conn.CreateFunction("regexp", 3, sqlite3.DETERMINISTIC, sqlRegexp); err != nil {
		return err
	}
	if err := conn.CreateFunction("dirname", 1, sqlite3.DETERMINISTIC, sqlDirname); err != nil {
		return err
	}
	return nil
}

const defaultTimeLayout = "2006-01-02 15:04:05"

// sqlUnixTimestamp implements unixtimestamp(text[,format]): numeric
// literals pass through; otherwise parse as UTC per the given or default
// strptime-style layout.
func sqlUnixTimestamp(ctx sqlite3.Context, arg...sqlite3.Value) {
	if len(arg) == 0 {
		ctx.ResultNull()
		return
	}
	text := arg[0].Text()
	if n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
		ctx.ResultInt64(n)
		return
	}

	layout := defaultTimeLayout
	if len(arg) > 1 {
		layout = strptimeToGoLayout(arg[1].Text())
	}
	t, err := time.Parse(layout, text)
	if err != nil {
		ctx.ResultNull()
		return
	}
	ctx.ResultInt64(t.UTC().Unix())
}

// strptimeToGoLayout translates the subset of strptime directives the job
// engine's date fields actually use into Go's reference-time layout.
func strptimeToGoLayout(format string) string {
	r := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
	)
	return r.Replace(format)
}

// regexpCache is a process-wide cache of compiled *regexp.Regexp values,
// keyed by pattern plus case-sensitivity, so a REGEXP predicate compiles
// its pattern once rather than once per row. Entries are never evicted.
var regexpCache sync.Map

// sqlRegexp implements regexp(pattern, caseSensitiveFlag, text): the pattern
// is compiled once and cached per (pattern, case-sensitivity) pair.
func sqlRegexp(ctx sqlite3.Context, arg...sqlite3.Value) {
	if len(arg) != 3 {
		ctx.ResultError(ErrNotImplemented)
		return
	}
	pattern := arg[0].Text()
	caseSensitive := arg[1].Int() != 0
	text := arg[2].Text()

	key := pattern
	if !caseSensitive {
		key = "(?i)" + pattern
	}
	re, ok := regexpCache.Load(key)
	if !ok {
		compiled, err := regexp.Compile(key)
		if err != nil {
			ctx.ResultError(err)
			return
		}
		regexpCache.Store(key, compiled)
		re = compiled
	}
	if re.(*regexp.Regexp).MatchString(text) {
		ctx.ResultInt(1)
	} else {
		ctx.ResultInt(0)
	}
}

func sqlDirname(ctx sqlite3.Context, arg...sqlite3.Value) {
	if len(arg) != 1 {
		ctx.ResultNull()
		return
	}
	ctx.ResultText(filepath.Dir(arg[0].Text()))
}
