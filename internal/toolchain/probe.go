package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/eykd/dgrun/internal/dg"
	"github.com/eykd/dgrun/internal/logging"
)

// DebugFormats are the -g options tried by the debug probe.
var DebugFormats = []string{"-gdwarf-2", "-gstabs", "-gstabs+", "-gxcoff", "-gxcoff+", "-gcoff"}

const (
	tlsSource     = "__thread int i;\n"
	weakSource    = "extern int f (void) __attribute__ ((weak));\nint main (void) { return f ? f () : 0; }\n"
	iconvSource   = "#include <iconv.h>\nint main (void)\n{\n  iconv_t cd = iconv_open (\"ISO-8859-2\", \"UTF-8\");\n  return cd == (iconv_t) -1;\n}\n"
	trivialSource = "int i;\n"
)

// Probe asks tc what it supports by compiling small programs in dir. It
// never fails: a probe that cannot run counts as "not supported".
func Probe(ctx context.Context, tc dg.Toolchain, dir string, logger *log.Logger) dg.Capabilities {
	l := logging.OrDiscard(logger)
	p := prober{ctx: ctx, tc: tc, dir: dir}

	var caps dg.Capabilities
	out, ok := p.compile("tls", tlsSource, dg.Compile, nil)
	caps.TLS = ok && !strings.Contains(out, "not supported")

	out, ok = p.compile("weak", weakSource, dg.Compile, nil)
	caps.Weak = ok && !(strings.Contains(out, "weak") && strings.Contains(out, "not supported"))

	_, ok = p.compile("iconv", iconvSource, dg.Link, nil)
	caps.Iconv = ok && p.lastOK

	for _, o := range DebugFormats {
		out, ok := p.compile("trivial", trivialSource, dg.Compile, []string{o})
		if !ok || strings.Contains(out, ": unknown or unsupported -g option") {
			continue
		}
		for _, level := range []string{"1", "", "3"} {
			caps.DebugOptions = append(caps.DebugOptions,
				[]string{o + level},
				[]string{o + level, "-O2"},
				[]string{o + level, "-O3"},
			)
		}
	}

	l.Info().Bool("tls", caps.TLS).Bool("weak", caps.Weak).Bool("iconv", caps.Iconv).
		Int("debug_sets", len(caps.DebugOptions)).Msg("probed compiler")
	return caps
}

type prober struct {
	ctx    context.Context
	tc     dg.Toolchain
	dir    string
	lastOK bool // whether the last probe exited 0
}

// compile writes src to dir and builds it. ok is false when the probe
// could not run at all.
func (p *prober) compile(name, src string, kind dg.Kind, options []string) (string, bool) {
	p.lastOK = false
	path := filepath.Join(p.dir, name+".c")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return "", false
	}
	defer os.Remove(path)

	out := filepath.Join(p.dir, name+dg.DefaultExtensions[kind])
	defer os.Remove(out)
	r, err := p.tc.Compile(p.ctx, dg.CompileRequest{
		Sources: []string{path},
		Output:  out,
		Kind:    kind,
		Options: options,
		Dir:     p.dir,
	})
	if err != nil {
		return "", false
	}
	p.lastOK = r.Succeeded()
	return r.Output, true
}
