// Package config implements the small options struct of spec.md §6's
// Configuration table, plus the string-flag parsers that turn CLI input
// into the typed values pkg/interproc and pkg/checker expect. Grounded
// on cmd/z80opt/main.go, which binds one flag variable per option and
// converts string flags (--dead-flags) into typed values
// (search.FlagMask) via small parse functions (parseDeadFlags) right
// before building a Config/RunE closure; here the same parse-then-build
// shape turns --precision/--domain/--hardware-addresses into
// interproc.Precision/polydomain.Kind/[]checker.AddrRange.
package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/oisee/ikos/pkg/ar"
	"github.com/oisee/ikos/pkg/checker"
	"github.com/oisee/ikos/pkg/fixpoint"
	"github.com/oisee/ikos/pkg/interproc"
	"github.com/oisee/ikos/pkg/polydomain"
)

// Options is the options struct of spec.md §6's Configuration table.
type Options struct {
	Precision         interproc.Precision
	Domain            polydomain.Kind
	MergeCallContexts bool
	HardwareAddresses []checker.AddrRange
	EntryPoints       []string
	WideningDelay     int
	NarrowingCap      int
}

// Default returns the options a fresh analysis run starts from absent
// any flags: full-memory precision, interval domain, merged calling
// contexts, a widening delay of 3 and a narrowing cap of 2.
func Default() Options {
	return Options{
		Precision:         interproc.PrecisionMemory,
		Domain:            polydomain.KindInterval,
		MergeCallContexts: true,
		WideningDelay:     3,
		NarrowingCap:      2,
	}
}

// InterprocOptions builds the pkg/interproc.Options a run of Analyze
// needs from this configuration and a loaded program.
func (o Options) InterprocOptions(prog *ar.Program) interproc.Options {
	return interproc.Options{
		Kind:              o.Domain,
		AbsZero:           absoluteZero(prog),
		Program:           prog,
		Precision:         o.Precision,
		MergeCallContexts: o.MergeCallContexts,
		Fixpoint: fixpoint.Options{
			WideningDelay: o.WideningDelay,
			NarrowingCap:  o.NarrowingCap,
		},
		Checker: checker.Options{
			HardwareAddresses: o.HardwareAddresses,
		},
	}
}

// absoluteZero finds the location a program's front end tagged as the
// absolute-zero sentinel (spec.md §6's "memory factory ... absolute-zero
// sentinel"), falling back to location 0 when none is tagged.
func absoluteZero(prog *ar.Program) ar.LocID {
	if prog == nil {
		return 0
	}
	for id, loc := range prog.Locations {
		if loc.Kind == ar.LocAbsoluteZero {
			return id
		}
	}
	return 0
}

// ParsePrecision parses the --precision flag value of spec.md §6's
// `precision` option: integer-only, pointer-tracking, or full-memory.
func ParsePrecision(s string) (interproc.Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory", "full-memory", "full":
		return interproc.PrecisionMemory, nil
	case "pointer", "pointer-tracking":
		return interproc.PrecisionPointer, nil
	case "integer", "integer-only":
		return interproc.PrecisionInteger, nil
	default:
		return 0, errors.Errorf("invalid --precision value %q: use integer, pointer, or memory", s)
	}
}

// ParseDomain parses the --domain flag value of spec.md §6's `domain`
// option, which selects the concrete numerical domain the polymorphic
// wrapper holds.
func ParseDomain(s string) (polydomain.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "interval":
		return polydomain.KindInterval, nil
	case "dbm":
		return polydomain.KindDBM, nil
	case "packed-dbm", "packeddbm":
		return polydomain.KindPackedDBM, nil
	case "gauge":
		return polydomain.KindGauge, nil
	default:
		return 0, errors.Errorf("invalid --domain value %q: use interval, dbm, packed-dbm, or gauge", s)
	}
}

// ParseHardwareAddresses parses the --hardware-addresses flag value of
// spec.md §6's `hardware_addresses` option: a comma-separated list of
// inclusive ranges, each "lo-hi" in decimal or 0x-prefixed hex, e.g.
// "0x1000-0x1FFF,0x4000-0x40FF". Mirrors cmd/z80opt/main.go's
// parseDeadFlags hex-or-keyword parsing.
func ParseHardwareAddresses(s string) ([]checker.AddrRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ranges []checker.AddrRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, errors.Errorf("invalid --hardware-addresses range %q: want lo-hi", part)
		}
		lo, err := parseAddr(bounds[0])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing lo bound of %q", part)
		}
		hi, err := parseAddr(bounds[1])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing hi bound of %q", part)
		}
		if hi < lo {
			return nil, errors.Errorf("invalid --hardware-addresses range %q: hi < lo", part)
		}
		ranges = append(ranges, checker.AddrRange{Lo: lo, Hi: hi})
	}
	return ranges, nil
}

func parseAddr(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseInt(hex, 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid hex address %q", s)
		}
		return v, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", s)
	}
	return v, nil
}
